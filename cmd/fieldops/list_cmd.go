package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aquanorte/fieldops/modules/fieldops/domain/aggregates/workorder"
	"github.com/aquanorte/fieldops/modules/fieldops/infrastructure/persistence"
	"github.com/aquanorte/fieldops/modules/fieldops/services"
	"github.com/aquanorte/fieldops/pkg/composables"
	"github.com/aquanorte/fieldops/pkg/configuration"
	"github.com/aquanorte/fieldops/pkg/eventbus"
)

type listCmdOptions struct {
	q      string
	limit  int
	offset int
}

func newListCmd() *cobra.Command {
	var opts listCmdOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.q, "q", "", "Filter by code, street or commune")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Page size")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Page offset")

	return cmd
}

func runList(ctx context.Context, opts listCmdOptions) error {
	conf := configuration.Use()

	pool, err := connectDB(ctx)
	if err != nil {
		return withCode(exitDB, err)
	}
	defer pool.Close()

	ctx = composables.WithPool(ctx, pool)

	svc := services.NewWorkOrderService(
		persistence.NewWorkOrderRepository(),
		eventbus.NewEventPublisher(conf.Logger()),
	)

	orders, total, err := svc.GetPaginated(ctx, &workorder.FindParams{
		Q:      opts.q,
		Limit:  opts.limit,
		Offset: opts.offset,
	})
	if err != nil {
		return withCode(exitDB, err)
	}

	fmt.Printf("%d of %d work order(s)\n", len(orders), total)
	for _, order := range orders {
		code := order.Code
		if code == "" {
			code = "(additional)"
		}
		fmt.Printf("%6d  %-14s %-24s %s, %s %s\n",
			order.ID,
			code,
			order.Status,
			strings.TrimSpace(order.Street+" "+order.Number),
			order.Commune,
			formatBestDate(order),
		)
	}
	return nil
}

func formatBestDate(order *workorder.WorkOrder) string {
	if d := order.BestKnownDate(); d != nil {
		return d.Format(time.DateOnly)
	}
	return ""
}
