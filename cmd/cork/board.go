package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/corkboard/internal/board"
)

func newBoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Board management commands",
	}

	cmd.AddCommand(newBoardCreateCmd())
	return cmd
}

func newBoardCreateCmd() *cobra.Command {
	var (
		configPath  string
		name        string
		description string
		columns     []string
		listed      bool
		requireName bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a board and print its write token",
		Long:  "Creates a board directly in the database. The token is printed once and cannot be recovered.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := board.CreateBoardOpts{
				Name:               name,
				Description:        description,
				Listed:             listed,
				RequireDisplayName: requireName,
				Actor:              "cli",
			}
			for _, c := range columns {
				if c = strings.TrimSpace(c); c != "" {
					opts.Columns = append(opts.Columns, board.ColumnOpts{Name: c})
				}
			}
			return runBoardCreate(cmd, configPath, opts)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Corkboard config file")
	cmd.Flags().StringVar(&name, "name", "", "board name (required)")
	cmd.Flags().StringVar(&description, "description", "", "board description")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "comma-separated column names (default: To Do,In Progress,Done)")
	cmd.Flags().BoolVar(&listed, "listed", false, "show the board in the public listing")
	cmd.Flags().BoolVar(&requireName, "require-display-name", false, "reject writes without a display name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runBoardCreate(cmd *cobra.Command, configPath string, opts board.CreateBoardOpts) error {
	out := cmd.OutOrStdout()

	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	svc := board.NewService(gormDB, board.Options{})
	created, err := svc.CreateBoard(context.Background(), opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Board:  %s (%s)\n", created.Board.Name, created.Board.ID)
	fmt.Fprint(out, "Columns:")
	for _, c := range created.Board.Columns {
		fmt.Fprintf(out, " %q", c.Name)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Token:  %s\n", created.Token)
	fmt.Fprintln(out, "\nStore the token now; it is not shown again.")
	return nil
}
