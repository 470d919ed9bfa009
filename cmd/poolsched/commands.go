package main

import (
	"context"
	"encoding/json"
	"fmt"
	"poolsched/internal/report"
	"poolsched/internal/reservations/query"
	apperrors "poolsched/pkg/errors"
	"poolsched/pkg/interval"
	"poolsched/pkg/model"
	"time"

	"github.com/urfave/cli/v2"
)

const timeUsage = `"MM/DD/YYYY (HH:MM)" in the configured timezone`

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseInstant parses an optional flag value. An empty value is unbounded.
func parseInstant(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := interval.ParseDateTime(value, loc)
	if err != nil {
		return nil, apperrors.Parse(err)
	}
	return &t, nil
}

func periodFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Usage: "start, " + timeUsage + "; omit for unbounded"},
		&cli.StringFlag{Name: "to", Usage: "end, " + timeUsage + "; omit for unbounded"},
	}
}

func periodFromFlags(c *cli.Context, loc *time.Location) (interval.Period, error) {
	lower, err := parseInstant(c.String("from"), loc)
	if err != nil {
		return interval.Period{}, err
	}
	upper, err := parseInstant(c.String("to"), loc)
	if err != nil {
		return interval.Period{}, err
	}
	period, err := interval.New(lower, upper)
	if err != nil {
		return interval.Period{}, apperrors.InvalidRange(err)
	}
	return period, nil
}

// ────────────────────────────────────────────────────────────────────────────
// Registry
// ────────────────────────────────────────────────────────────────────────────

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "load pools, lanes, lockers and closures from a YAML file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "seed file", Required: true},
		},
		Action: withApp(func(c *cli.Context, a *app) error {
			res, err := a.registry.Seed(c.Context, c.String("file"))
			if err != nil {
				return err
			}
			return printJSON(c, res)
		}),
	}
}

type poolListing struct {
	*model.Pool
	Lanes    []*model.Lane    `json:"lanes"`
	Lockers  []*model.Locker  `json:"lockers"`
	Closures []*model.Closure `json:"closures"`
}

func poolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "pools",
		Usage: "list pools with their lanes, lockers and closures",
		Action: withApp(func(c *cli.Context, a *app) error {
			ctx := c.Context
			pools, err := a.registry.ListPools(ctx)
			if err != nil {
				return err
			}
			out := make([]poolListing, 0, len(pools))
			for _, p := range pools {
				entry := poolListing{Pool: p}
				if entry.Lanes, err = a.registry.ListLanes(ctx, p.ID); err != nil {
					return err
				}
				if entry.Lockers, err = a.registry.ListLockers(ctx, p.ID); err != nil {
					return err
				}
				if entry.Closures, err = a.registry.ListClosures(ctx, p.ID); err != nil {
					return err
				}
				out = append(out, entry)
			}
			return printJSON(c, out)
		}),
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Reservations
// ────────────────────────────────────────────────────────────────────────────

func reserveLaneCommand() *cli.Command {
	return &cli.Command{
		Name:  "reserve-lane",
		Usage: "reserve a lane for a group of swimmers",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "lane", Usage: "lane id", Required: true},
			&cli.StringSliceFlag{Name: "user", Usage: "swimmer id, repeatable"},
		}, periodFlags()...),
		Action: withApp(func(c *cli.Context, a *app) error {
			period, err := periodFromFlags(c, a.cfg.Location)
			if err != nil {
				return err
			}
			r, err := a.reservations.CreateLaneReservation(c.Context, c.String("lane"), period, c.StringSlice("user"))
			if err != nil {
				return err
			}
			return printJSON(c, r)
		}),
	}
}

func reserveLockerCommand() *cli.Command {
	return &cli.Command{
		Name:  "reserve-locker",
		Usage: "reserve a locker for one user",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "locker", Usage: "locker id", Required: true},
			&cli.StringFlag{Name: "user", Usage: "user id", Required: true},
		}, periodFlags()...),
		Action: withApp(func(c *cli.Context, a *app) error {
			period, err := periodFromFlags(c, a.cfg.Location)
			if err != nil {
				return err
			}
			r, err := a.reservations.CreateLockerReservation(c.Context, c.String("locker"), c.String("user"), period)
			if err != nil {
				return err
			}
			return printJSON(c, r)
		}),
	}
}

type lifecycleFunc func(ctx context.Context, id string) (*model.Reservation, error)

func lifecycleCommand(name, usage string, op func(a *app) lifecycleFunc) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<reservation-id>",
		Action: withApp(func(c *cli.Context, a *app) error {
			id := c.Args().First()
			if id == "" {
				return apperrors.InvalidInput("reservation id is required")
			}
			r, err := op(a)(c.Context, id)
			if err != nil {
				return err
			}
			return printJSON(c, r)
		}),
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Queries
// ────────────────────────────────────────────────────────────────────────────

func viewFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "kind", Usage: "lane or locker; omit for both"},
		&cli.BoolFlag{Name: "all", Usage: "include cancelled reservations"},
		&cli.StringFlag{Name: "pool", Usage: "restrict to a pool id"},
		&cli.StringFlag{Name: "user", Usage: "restrict to a user id"},
		&cli.StringFlag{Name: "resource", Usage: "restrict to a lane or locker id"},
	}
}

func viewFromFlags(c *cli.Context, e *query.Engine) (query.View, error) {
	kind := model.Kind(c.String("kind"))
	if kind != "" && !kind.Valid() {
		return query.View{}, apperrors.InvalidInput(fmt.Sprintf("unknown kind %q", kind))
	}
	v := e.Active(kind)
	if c.Bool("all") {
		v = e.All(kind)
	}
	if id := c.String("pool"); id != "" {
		v = v.ForPool(id)
	}
	if id := c.String("user"); id != "" {
		v = v.ForUser(id)
	}
	if id := c.String("resource"); id != "" {
		v = v.ForResource(id)
	}
	return v, nil
}

type listFunc func(c *cli.Context, a *app, v query.View) ([]*model.Reservation, error)

func listCommand(name, usage string, extra []cli.Flag, list listFunc) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Flags: append(viewFlags(), extra...),
		Action: withApp(func(c *cli.Context, a *app) error {
			v, err := viewFromFlags(c, a.query)
			if err != nil {
				return err
			}
			rows, err := list(c, a, v)
			if err != nil {
				return err
			}
			return printJSON(c, rows)
		}),
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:  "query",
		Usage: "read-only reservation views",
		Subcommands: []*cli.Command{
			listCommand("list", "every reservation in the view", nil,
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) { return v.List(c.Context) }),
			listCommand("this-week", "reservations overlapping the current week",
				[]cli.Flag{&cli.BoolFlag{Name: "sunday", Usage: "weeks start on Sunday"}},
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) {
					return v.ThisWeek(c.Context, c.Bool("sunday"))
				}),
			listCommand("this-month", "reservations overlapping the current month", nil,
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) { return v.ThisMonth(c.Context) }),
			listCommand("year-to-date", "reservations overlapping Jan 1 until now", nil,
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) { return v.YearToDate(c.Context) }),
			listCommand("til-end-of-year", "reservations overlapping now until the new year", nil,
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) { return v.TilEndOfYear(c.Context) }),
			listCommand("oct-dec", "reservations ending in October or December this year", nil,
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) {
					return v.EndingInOctOrDecThisYear(c.Context)
				}),
			listCommand("past", "reservations that already ended", nil,
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) { return v.InThePast(c.Context) }),
			listCommand("overdue", "reservations missing a check-in or check-out",
				[]cli.Flag{&cli.StringFlag{Name: "edge", Value: "start", Usage: "start or end"}},
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) {
					switch c.String("edge") {
					case "start":
						return v.OverdueStart(c.Context)
					case "end":
						return v.OverdueEnd(c.Context)
					}
					return nil, apperrors.InvalidInput(fmt.Sprintf("unknown edge %q", c.String("edge")))
				}),
			listCommand("longer", "reservations longer than a duration",
				[]cli.Flag{&cli.DurationFlag{Name: "than", Usage: "threshold; defaults to 8h for lanes and 720h otherwise"}},
				func(c *cli.Context, _ *app, v query.View) ([]*model.Reservation, error) {
					d := c.Duration("than")
					if !c.IsSet("than") {
						d = query.LockerLongerThreshold
						if model.Kind(c.String("kind")) == model.KindLane {
							d = query.LaneLongerThreshold
						}
					}
					return v.LongerThan(c.Context, d)
				}),
			listCommand("overlapping", "reservations overlapping a range", periodFlags(),
				func(c *cli.Context, a *app, v query.View) ([]*model.Reservation, error) {
					rng, err := periodFromFlags(c, a.cfg.Location)
					if err != nil {
						return nil, err
					}
					return v.Overlapping(c.Context, rng)
				}),
			listCommand("containing", "reservations containing an instant",
				[]cli.Flag{&cli.StringFlag{Name: "at", Usage: "instant, " + timeUsage + "; defaults to now"}},
				func(c *cli.Context, a *app, v query.View) ([]*model.Reservation, error) {
					at, err := parseInstant(c.String("at"), a.cfg.Location)
					if err != nil {
						return nil, err
					}
					if at == nil {
						now := a.cfg.Now()
						at = &now
					}
					return v.Containing(c.Context, *at)
				}),
			{
				Name:  "average",
				Usage: "mean booked duration of the view",
				Flags: viewFlags(),
				Action: withApp(func(c *cli.Context, a *app) error {
					v, err := viewFromFlags(c, a.query)
					if err != nil {
						return err
					}
					avg, err := v.AverageDuration(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c, map[string]string{"average": avg.String()})
				}),
			},
		},
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Export
// ────────────────────────────────────────────────────────────────────────────

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write the view to an xlsx workbook",
		Flags: append(viewFlags(),
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "reservations.xlsx", Usage: "output file"},
		),
		Action: withApp(func(c *cli.Context, a *app) error {
			ctx := c.Context
			v, err := viewFromFlags(c, a.query)
			if err != nil {
				return err
			}
			rows, err := v.List(ctx)
			if err != nil {
				return err
			}

			wb := report.NewWorkbook()
			defer func() { _ = wb.Close() }()
			if err := wb.Reservations(rows, poolNamer(ctx, a), a.cfg.Location); err != nil {
				return apperrors.Internal("Failed to build workbook", err)
			}
			if err := wb.SaveToFile(c.String("out")); err != nil {
				return apperrors.Internal("Failed to save workbook", err)
			}
			a.cfg.Log.Info("Reservations exported", "path", c.String("out"), "rows", len(rows))
			return nil
		}),
	}
}

func poolNamer(ctx context.Context, a *app) report.PoolNamer {
	names := make(map[string]string)
	return func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		name := id
		if p, err := a.registry.GetPool(ctx, id); err == nil {
			name = p.Name
		}
		names[id] = name
		return name
	}
}
