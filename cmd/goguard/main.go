// Command goguard runs the demo server and manages users.
//
//	goguard serve [-c config.yaml] [--trust-proxy]
//	goguard create-user -u alice -p 'Correct-Horse-42' [--totp] [-c config.yaml]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/user"
	"github.com/pborman/getopt/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[1:])
	case "create-user":
		err = runCreateUser(os.Args[1:])
	case "-h", "--help", "help":
		usage(os.Stdout)
		return
	default:
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "goguard:", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: goguard serve [-c config] [--trust-proxy]")
	fmt.Fprintln(w, "       goguard create-user -u name -p password [--totp] [-c config]")
}

// openEngine loads configuration and connects to Redis. The returned cleanup
// closes both.
func openEngine(configPath string) (*goGuard.Engine, func(), error) {
	cfg, err := goGuard.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewUniversalClient(cfg.Redis.UniversalOptions())
	engine, err := goGuard.New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return engine, func() {
		engine.Close()
		_ = rdb.Close()
	}, nil
}

func runCreateUser(args []string) error {
	set := getopt.New()
	set.SetProgram("goguard create-user")
	name := set.StringLong("user", 'u', "", "user name", "name")
	password := set.StringLong("password", 'p', "", "password", "password")
	withTOTP := set.BoolLong("totp", 0, "enrol a TOTP secret")
	configPath := set.StringLong("config", 'c', "", "config file (.env, .yaml, .toml)", "path")
	if err := set.Getopt(args, nil); err != nil {
		set.PrintUsage(os.Stderr)
		return err
	}

	engine, cleanup, err := openEngine(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	created, err := engine.CreateUser(context.Background(), *name, *password, *withTOTP)
	var formErr *user.FormError
	if errors.As(err, &formErr) {
		return errors.New(formErr.Message)
	}
	if err != nil {
		return err
	}

	fmt.Printf("created user %s\n", created.Name)
	if created.TwoFactorSecret != "" {
		fmt.Printf("totp secret: %s\n", created.TwoFactorSecret)
		fmt.Printf("provisioning uri: %s\n", created.ProvisioningURI)
	}
	return nil
}

func runServe(args []string) error {
	set := getopt.New()
	set.SetProgram("goguard serve")
	configPath := set.StringLong("config", 'c', "", "config file (.env, .yaml, .toml)", "path")
	trustProxy := set.BoolLong("trust-proxy", 0, "read client addresses from X-Forwarded-For")
	if err := set.Getopt(args, nil); err != nil {
		set.PrintUsage(os.Stderr)
		return err
	}

	engine, cleanup, err := openEngine(*configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	report := engine.SecurityReport()
	engine.Logger().WithFields(logrus.Fields{
		"pow_difficulty": report.PoWDifficulty,
		"captcha":        report.CaptchaEnabled,
		"rate_limit":     report.RateLimitingActive,
		"reputation":     report.ReputationSources,
		"access_gate":    report.AccessGateActive,
	}).Info("goguard listening on " + engine.Config().Server.Addr)

	return newServer(engine, *trustProxy).router().Run(engine.Config().Server.Addr)
}
