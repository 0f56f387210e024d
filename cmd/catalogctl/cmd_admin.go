package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myfreehouseplans/catalog/internal/repository"
	"github.com/myfreehouseplans/catalog/internal/service"
)

var (
	adminUsername string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an active super admin.

The password may be passed with --password or through
CATALOG_ADMIN_PASSWORD to keep it out of shell history.`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "", "Admin username")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email address")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password (default $CATALOG_ADMIN_PASSWORD)")
	_ = createAdminCmd.MarkFlagRequired("username")
	_ = createAdminCmd.MarkFlagRequired("email")
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	password := adminPassword
	if password == "" {
		password = os.Getenv("CATALOG_ADMIN_PASSWORD")
	}

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Sessions are not touched when creating accounts.
	authService := service.NewAuthService(repository.NewUserRepository(repo), nil, 0, logger)

	user, err := authService.CreateAdmin(ctx, service.AdminInput{
		Username: adminUsername,
		Email:    adminEmail,
		Password: password,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			for field, msg := range verr.Fields {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, msg)
			}
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (id %d)\n", user.Username, user.ID)
	return nil
}
