package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mentormatch/mentormatch/internal/logger"
)

const (
	TaskTopic      = "topic"
	TaskRole       = "role"
	TaskStudent    = "student"
	TaskSupervisor = "supervisor"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Run a single matching task and print the result as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("task", "t", "", "task to run: topic, role, student or supervisor")
	matchCmd.Flags().Int64P("id", "i", 0, "topic, role or user id for the task")
	matchCmd.Flags().String("target-role", "", "for the topic task: rank students or supervisors")
}

func match(cmd *cobra.Command) error {
	_ = godotenv.Load()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return err
	}
	defer log.Sync() //nolint: errcheck

	task, err := cmd.Flags().GetString("task")
	if err != nil {
		return err
	}
	if task == "" {
		prompt := promptui.Select{
			Label: "Which match to run?",
			Items: []string{TaskTopic, TaskRole, TaskStudent, TaskSupervisor},
		}
		if _, task, err = prompt.Run(); err != nil {
			return err
		}
	}
	task = strings.ToLower(strings.TrimSpace(task))

	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	if id == 0 {
		if id, err = promptForID(task); err != nil {
			return err
		}
	}

	config, err := getConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	service, pool, err := buildService(ctx, config, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	var result any
	switch task {
	case TaskTopic:
		targetRole, err := cmd.Flags().GetString("target-role")
		if err != nil {
			return err
		}
		result = service.MatchTopic(ctx, id, targetRole)
	case TaskRole:
		result = service.MatchRole(ctx, id)
	case TaskStudent:
		result = service.MatchStudent(ctx, id)
	case TaskSupervisor:
		result = service.MatchSupervisor(ctx, id)
	default:
		return fmt.Errorf("unknown task %q", task)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return nil
}

func promptForID(task string) (int64, error) {
	prompt := promptui.Prompt{
		Label: fmt.Sprintf("Enter the %s id", task),
		Validate: func(input string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	raw, err := prompt.Run()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}
