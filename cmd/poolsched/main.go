package main

import (
	"fmt"
	"os"
	"poolsched/pkg/config"
	apperrors "poolsched/pkg/errors"

	"github.com/urfave/cli/v2"
)

const ServiceName = "poolsched"

func main() {
	cliApp := &cli.App{
		Name:  ServiceName,
		Usage: "book municipal pool lanes and lockers",
		Commands: []*cli.Command{
			seedCommand(),
			poolsCommand(),
			reserveLaneCommand(),
			reserveLockerCommand(),
			lifecycleCommand("cancel", "cancel a reservation", func(a *app) lifecycleFunc { return a.reservations.Cancel }),
			lifecycleCommand("check-in", "record arrival for a reservation", func(a *app) lifecycleFunc { return a.reservations.CheckIn }),
			lifecycleCommand("check-out", "record departure for a reservation", func(a *app) lifecycleFunc { return a.reservations.CheckOut }),
			queryCommand(),
			exportCommand(),
			serveCommand(),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// withApp loads configuration and wires services around a command action.
func withApp(action func(c *cli.Context, a *app) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := config.Load(ServiceName)
		a, err := newApp(c.Context, cfg)
		if err != nil {
			return err
		}
		defer a.close()
		return action(c, a)
	}
}

func describe(err error) string {
	if !apperrors.IsAppError(err) {
		return "error: " + err.Error()
	}
	appErr := apperrors.AsAppError(err)
	msg := fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
	if id := apperrors.ConflictingID(err); id != "" {
		msg += " (conflicts with " + id + ")"
	}
	if appErr.Err != nil {
		msg += ": " + appErr.Err.Error()
	} else if details, ok := appErr.Details["errors"]; ok {
		msg += fmt.Sprintf(": %v", details)
	}
	return msg
}
