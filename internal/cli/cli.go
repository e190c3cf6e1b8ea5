package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/internal/log"
	internal_storage "github.com/E-837/ad-ops-command-center-sub002/internal/storage"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/checkpoint"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/registry"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/storage"
	"github.com/E-837/ad-ops-command-center-sub002/pkg/workflows"
	"github.com/spf13/cobra"
)

func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().String("db", "", "Database connection string")
	rootCmd.PersistentFlags().String("checkpoint-dir", ".checkpoints", "Directory for execution checkpoints")

	workflowsCmd := &cobra.Command{
		Use:   "workflows",
		Short: "List the registered workflows",
		Run: func(cmd *cobra.Command, args []string) {
			eng := initEngine(storage.NewMockStore(), checkpoint.NewMemoryStore())
			for _, def := range eng.Registry().List() {
				fmt.Fprintf(os.Stdout, "- %s (%s): %d stages, trigger %s\n", def.ID, def.Name, len(def.Stages), def.Trigger)
			}
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [workflow_id]",
		Short: "Run a workflow to completion",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			eng := initEngine(store, initCheckpoints(cmd))

			executionID, _ := cmd.Flags().GetString("execution-id")
			rawInputs, _ := cmd.Flags().GetStringArray("input")

			execID, err := eng.RunWorkflow(context.Background(), args[0], engine.RunOptions{
				ExecutionID: executionID,
				Inputs:      parseInputs(rawInputs),
			})
			if err != nil {
				log.GetLogger().Errorf("Failed to run workflow: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to run workflow: %v\n", err)
				os.Exit(1)
			}
			printExecution(eng, execID)
		},
	}
	runCmd.Flags().String("execution-id", "", "Execution identifier (resume a prior run by reusing its id)")
	runCmd.Flags().StringArray("input", nil, "Workflow input as key=value (repeatable)")

	statusCmd := &cobra.Command{
		Use:   "status [execution_id]",
		Short: "Show the state of an execution",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			eng := initEngine(store, initCheckpoints(cmd))
			printExecution(eng, args[0])
		},
	}

	executionsCmd := &cobra.Command{
		Use:   "executions",
		Short: "List executions",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(cmd)
			defer store.Close()
			workflowID, _ := cmd.Flags().GetString("workflow")
			executions, err := store.ListExecutions(workflowID)
			if err != nil {
				log.GetLogger().Errorf("Failed to list executions: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to list executions: %v\n", err)
				os.Exit(1)
			}
			if len(executions) == 0 {
				fmt.Fprintf(os.Stdout, "No executions found.\n")
				return
			}
			for _, e := range executions {
				fmt.Fprintf(os.Stdout, "- ID: %s, Workflow: %s, Status: %s, Started: %s\n",
					e.ID, e.WorkflowID, e.Status, e.StartedAt.Format(time.RFC3339))
			}
		},
	}
	executionsCmd.Flags().String("workflow", "", "Filter by workflow id")

	rootCmd.AddCommand(workflowsCmd, runCmd, statusCmd, executionsCmd)
}

func printExecution(eng *engine.Engine, executionID string) {
	rec, err := eng.GetExecution(executionID)
	if err != nil {
		log.GetLogger().Errorf("Failed to get execution: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to get execution: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Execution %s (%s): %s\n", rec.ID, rec.WorkflowID, rec.Status)
	if rec.Resumed {
		fmt.Fprintf(os.Stdout, "  resumed from checkpoint\n")
	}
	for _, s := range rec.Stages {
		line := fmt.Sprintf("  - %s: %s", s.StageID, s.Status)
		if s.Error != "" {
			line += " (" + s.Error + ")"
		}
		fmt.Fprintln(os.Stdout, line)
	}
	if rec.Error != "" {
		fmt.Fprintf(os.Stdout, "  error: %s\n", rec.Error)
	}
}

// parseInputs turns key=value pairs into workflow inputs, keeping numeric
// values numeric so budget-style inputs arrive as float64.
func parseInputs(raw []string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	inputs := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			inputs[key] = f
		} else {
			inputs[key] = value
		}
	}
	return inputs
}

func initEngine(store storage.Store, checkpoints checkpoint.Store) *engine.Engine {
	logger := log.GetLogger()
	eng := engine.NewEngine(registry.NewRegistry(logger), checkpoints, engine.NewEmitter(logger), store, logger)
	if err := workflows.RegisterAll(eng); err != nil {
		logger.Errorf("Failed to register workflows: %v", err)
		os.Exit(1)
	}
	return eng
}

func initCheckpoints(cmd *cobra.Command) checkpoint.Store {
	dir, _ := cmd.Flags().GetString("checkpoint-dir")
	store, err := checkpoint.NewFileStore(dir)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize checkpoint store: %v", err)
		os.Exit(1)
	}
	return store
}

func initStore(cmd *cobra.Command) *internal_storage.PostgresStore {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil || dbConnStr == "" {
		log.GetLogger().Errorf("Missing --db connection string")
		os.Exit(1)
	}
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
