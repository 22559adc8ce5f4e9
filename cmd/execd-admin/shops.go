package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

type listShopsOptions struct {
	Limit  int
	Offset int
}

func parseListShopsFlags(args []string) (*listShopsOptions, error) {
	fs := flag.NewFlagSet("list-shops", flag.ContinueOnError)
	opts := &listShopsOptions{}
	fs.IntVar(&opts.Limit, "limit", 100, "maximum number of shops to list")
	fs.IntVar(&opts.Offset, "offset", 0, "number of shops to skip")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

func runListShops(cmdCtx *commandContext, args []string) error {
	opts, err := parseListShopsFlags(args)
	if err != nil {
		return err
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	shops, err := inf.Shops.List(ctx, opts.Limit, opts.Offset)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSITE\tBROWSER\tSTATUS\tLAST CONNECTED")
	for _, shop := range shops {
		lastConnected := "never"
		if shop.LastConnectedAt != nil {
			lastConnected = shop.LastConnectedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shop.ID, shop.DisplayName, shop.Site, shop.ExternalBrowserID,
			shop.ConnectionStatus, lastConnected)
	}
	return w.Flush()
}

func runSyncShops(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("sync-shops", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	// Listing every profile on a large farm can be slow; give it more room
	// than the usual command timeout.
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	result, err := inf.Shops.SyncFromProvisioner(ctx)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "synced %d shops (%d expired browsers skipped)\n", result.Seen, result.Expired)
}

func runTestShop(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("test-shop", flag.ContinueOnError)
	id := fs.String("id", "", "shop ID (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	inf, err := connectInfra(cmdCtx)
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	shop, err := inf.Shops.TestConnection(ctx, *id)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "shop %s connection status: %s\n", shop.ID, shop.ConnectionStatus)
}

func runListWorkers(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-workers", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	inf, err := connectInfraWithOptions(cmdCtx, infraOptions{WithRedis: true})
	if err != nil {
		return err
	}
	defer closeInfra(cmdCtx, inf)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	workers, err := inf.Workers.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WORKER\tSTATE\tTASK\tSHOP\tUPDATED")
	for _, worker := range workers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			worker.WorkerID, worker.State, worker.CurrentTaskNo, worker.CurrentShopID,
			worker.UpdatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}
