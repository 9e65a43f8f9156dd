package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newSchedulePauseCmd(clientFn, outputFn),
		newScheduleResumeCmd(clientFn, outputFn),
		newScheduleDisableCmd(clientFn, outputFn),
	)

	return cmd
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedules, err := client.ListSchedules(state)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "RECURRENCE", "STATE", "NEXT_FIRE", "OWNER"}
			rows := make([][]string, len(schedules))
			for i, s := range schedules {
				rows[i] = []string{
					s.ID, s.Name, formatRecurrence(&s), s.State,
					FormatFireTime(s.NextFireAt), s.Owner,
				}
			}

			out.Print(headers, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Filter by state (ACTIVE, PAUSED, COMPLETED, FAILED, DISABLED)")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var at string
	var cronExpr string
	var intervalSec int
	var repeat int
	var timezone string
	var recovery string
	var targetURL string
	var method string
	var headers []string
	var body string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateScheduleRequest{
				Name:           name,
				CronExpr:       cronExpr,
				IntervalSec:    intervalSec,
				Timezone:       timezone,
				RecoveryPolicy: recovery,
			}

			if at != "" {
				fireAt, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value %q, expected RFC3339", at)
				}
				req.FireAt = &fireAt
			}

			if repeat > 0 {
				req.RepeatCount = &repeat
			}

			httpAction := map[string]any{
				"method": method,
				"url":    targetURL,
			}

			if len(headers) > 0 {
				hdrs := make(map[string]string)
				for _, kv := range headers {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid header format %q, expected KEY=VALUE", kv)
					}
					hdrs[parts[0]] = parts[1]
				}
				httpAction["headers"] = hdrs
			}

			if body != "" {
				var payload map[string]any
				if err := json.Unmarshal([]byte(body), &payload); err != nil {
					return fmt.Errorf("invalid --body value, expected JSON object: %w", err)
				}
				httpAction["body"] = payload
			}

			req.Action = map[string]any{
				"kind": "http",
				"http": httpAction,
			}

			schedule, err := client.CreateSchedule(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			out.Print(
				[]string{"ID", "NAME", "RECURRENCE", "STATE", "NEXT_FIRE"},
				[][]string{{
					schedule.ID, schedule.Name, formatRecurrence(schedule),
					schedule.State, FormatFireTime(schedule.NextFireAt),
				}},
				schedule,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name (required)")
	cmd.Flags().StringVar(&at, "at", "", "One-shot fire time (RFC3339)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. '0 * * * *')")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "Interval in seconds")
	cmd.Flags().IntVar(&repeat, "repeat", 0, "Number of firings before completion (recurring only)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone (e.g. 'Europe/Moscow')")
	cmd.Flags().StringVar(&recovery, "recovery", "", "Recovery policy (FIRE_IMMEDIATELY or SKIP_TO_NEXT)")
	cmd.Flags().StringVar(&targetURL, "url", "", "Target URL for HTTP action (required)")
	cmd.Flags().StringVar(&method, "method", "POST", "HTTP method for the action")
	cmd.Flags().StringSliceVar(&headers, "header", nil, "Extra HTTP headers as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&body, "body", "", "HTTP body as a JSON object")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("url")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.GetSchedule(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "NAME", "RECURRENCE", "TIMEZONE", "STATE", "NEXT_FIRE", "LAST_FIRED", "OWNER", "VERSION"},
				[][]string{{
					schedule.ID, schedule.Name, formatRecurrence(schedule),
					schedule.Timezone, schedule.State,
					FormatFireTime(schedule.NextFireAt),
					FormatFireTime(schedule.LastFiredAt), schedule.Owner,
					strconv.FormatInt(schedule.Version, 10),
				}},
				schedule,
			)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var at string
	var cronExpr string
	var intervalSec int
	var repeat int
	var timezone string
	var recovery string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("at") {
				fireAt, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at value %q, expected RFC3339", at)
				}
				req.FireAt = &fireAt
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &intervalSec
			}
			if cmd.Flags().Changed("repeat") {
				req.RepeatCount = &repeat
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &timezone
			}
			if cmd.Flags().Changed("recovery") {
				req.RecoveryPolicy = &recovery
			}

			schedule, err := client.UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Schedule updated")
			out.Print(
				[]string{"ID", "NAME", "RECURRENCE", "STATE", "NEXT_FIRE"},
				[][]string{{
					schedule.ID, schedule.Name, formatRecurrence(schedule),
					schedule.State, FormatFireTime(schedule.NextFireAt),
				}},
				schedule,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New schedule name")
	cmd.Flags().StringVar(&at, "at", "", "New one-shot fire time (RFC3339)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "New cron expression")
	cmd.Flags().IntVar(&intervalSec, "interval", 0, "New interval in seconds")
	cmd.Flags().IntVar(&repeat, "repeat", 0, "New remaining firing count")
	cmd.Flags().StringVar(&timezone, "timezone", "", "New timezone")
	cmd.Flags().StringVar(&recovery, "recovery", "", "New recovery policy")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteSchedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

func newSchedulePauseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "pause ID",
		Short: "Pause a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if _, err := client.PauseSchedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule paused: %s", args[0]))
			return nil
		},
	}
}

func newScheduleResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a paused schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			schedule, err := client.ResumeSchedule(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule resumed: %s, next fire at %s",
				args[0], FormatFireTime(schedule.NextFireAt)))
			return nil
		},
	}
}

func newScheduleDisableCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a schedule permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if _, err := client.DisableSchedule(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule disabled: %s", args[0]))
			return nil
		},
	}
}

func formatRecurrence(s *ScheduleResponse) string {
	switch {
	case s.FireAt != "":
		return "once @ " + s.FireAt
	case s.CronExpr != "":
		return "cron " + s.CronExpr
	case s.IntervalSec > 0:
		return "every " + strconv.Itoa(s.IntervalSec) + "s"
	default:
		return ""
	}
}
