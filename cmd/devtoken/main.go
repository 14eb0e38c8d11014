// Command devtoken mints access tokens signed with the service key pair for
// local testing against the API, and revokes them before expiry.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"medconnect-service/internal/config"
	"medconnect-service/internal/db"
	"medconnect-service/internal/pkg/jwt"
	"medconnect-service/internal/pkg/session"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "devtoken",
		Usage: "manage bearer tokens for the MedConnect API",
		Commands: []*cli.Command{
			{
				Name:  "mint",
				Usage: "sign a new access token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "user id (sub claim)", Required: true},
					&cli.StringFlag{Name: "email", Usage: "email claim"},
					&cli.StringFlag{Name: "name", Usage: "display name claim"},
					&cli.StringSliceFlag{Name: "role", Usage: "role claim, repeatable", Value: cli.NewStringSlice(jwt.RolePatient)},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: 24 * time.Hour},
				},
				Action: mint,
			},
			{
				Name:      "revoke",
				Usage:     "reject a token until it expires",
				ArgsUsage: "<token>",
				Action:    revoke,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mint(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.JWT.PrivPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH must point at the signing key")
	}

	manager, err := jwt.LoadAndBuild(cfg.JWT.Token())
	if err != nil {
		return err
	}

	token, jti, err := manager.Generator.Generate(jwt.Identity{
		UserID: c.String("user"),
		Email:  c.String("email"),
		Name:   c.String("name"),
		Roles:  c.StringSlice("role"),
	}, jwt.PurposeAccess, c.Duration("ttl"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "jti: %s\n", jti)
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

func revoke(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: devtoken revoke <token>", 2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled {
		return fmt.Errorf("REDIS_ENABLED is false: there is no revocation list to write to")
	}

	manager, err := jwt.LoadAndBuild(cfg.JWT.Token())
	if err != nil {
		return err
	}
	claims, err := manager.Verifier.Verify(c.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	client, err := db.ConnectRedis(ctx, db.RedisConfig{
		Address:  cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 1,
	}, zap.NewNop())
	if err != nil {
		return err
	}
	defer client.Close()

	if err := session.NewManager(client, cfg.Redis.Prefix).Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "revoked %s until %s\n", claims.ID, claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
	return nil
}
