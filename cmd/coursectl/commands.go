package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/msomdec/course-market/internal/domain"
)

func newMigrateCommand(c *appContext) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Action: func(ctx context.Context, _ *cli.Command) error {
			fmt.Println("Applying database migrations…")
			if err := c.db.Migrate(ctx); err != nil {
				return err
			}

			fmt.Println("✅ Migration complete!")
			return nil
		},
	}
}

func newImportCatalogCommand(c *appContext) *cli.Command {
	return &cli.Command{
		Name:        "import-catalog",
		Usage:       "Import courses and chapters from a YAML file",
		Description: "Courses are matched by title and chapters by position, so re-importing keeps chapter IDs and the watch progress attached to them. Chapters missing from the file are unpublished.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "The YAML catalog to import.",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := os.Open(cmd.String("file"))
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()

			if err := c.db.Migrate(ctx); err != nil {
				return err
			}

			fmt.Printf("Importing catalog from %q…\n", cmd.String("file"))
			courses, err := c.catalog.ImportYAML(ctx, f)
			if err != nil {
				return err
			}

			for _, course := range courses {
				fmt.Printf("  #%d %s (%d chapters)\n", course.ID, course.Title, len(course.Chapters))
			}
			fmt.Printf("✅ Imported %d courses!\n", len(courses))
			return nil
		},
	}
}

func newPromoteAdminCommand(c *appContext) *cli.Command {
	return &cli.Command{
		Name:  "promote-admin",
		Usage: "Promote a user to an administrator account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "email",
				Usage:    "The email of the user to promote.",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			email := cmd.String("email")
			fmt.Println("Promoting user", email, "to an administrator account.")

			if err := c.auth.PromoteAdmin(ctx, email); err != nil {
				return err
			}

			fmt.Println("✅ User", email, "has been promoted to an administrator.")
			return nil
		},
	}
}

func newResolvePaymentCommand(c *appContext) *cli.Command {
	return &cli.Command{
		Name:        "resolve-payment",
		Usage:       "Apply a payment outcome to a pending enrollment",
		Description: "For reconciling payments whose webhook never arrived. Fails if the enrollment is no longer PENDING.",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "enrollment",
				Usage:    "The enrollment ID.",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "success or failure.",
				Value: string(domain.PaymentSucceeded),
			},
			&cli.StringFlag{
				Name:  "payment-id",
				Usage: "The payment provider's reference. Required on success.",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := c.enrollments.ResolvePayment(ctx,
				cmd.Int64("enrollment"),
				domain.PaymentOutcome(cmd.String("outcome")),
				cmd.String("payment-id"),
			)
			if err != nil {
				return err
			}

			fmt.Printf("✅ Enrollment #%d is now %s.\n", e.ID, e.Status)
			return nil
		},
	}
}

func newStatsCommand(c *appContext) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print enrollment counts by status",
		Action: func(ctx context.Context, _ *cli.Command) error {
			counts, err := c.db.Enrollments().CountByStatus(ctx)
			if err != nil {
				return err
			}

			for _, status := range []domain.AccessStatus{
				domain.StatusPending, domain.StatusCompleted, domain.StatusFailed, domain.StatusRefunded,
			} {
				fmt.Printf("%-10s %d\n", status, counts[status])
			}
			return nil
		},
	}
}

func newRootCommand(subcommands ...*cli.Command) *cli.Command {
	return &cli.Command{
		Name:     "coursectl",
		Usage:    "A CLI tool for managing the course marketplace.",
		Commands: subcommands,
	}
}
