package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/authctl"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := repomanager.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	return authctl.New(store.Users(), os.Stdout).Run(ctx, os.Args[1:])
}
