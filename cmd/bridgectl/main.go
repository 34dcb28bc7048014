package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wxbridge/internal/config"
	"wxbridge/internal/domain"
	"wxbridge/internal/secret"
	"wxbridge/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create-app":
		err = runCreateApp(args)
	case "set-forward":
		err = runSetForward(args)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  create-app    Mint credentials for a new client app")
	fmt.Fprintln(os.Stderr, "  set-forward   Configure the webhook URL for an app")
	os.Exit(2)
}

func openStore() (*store.Store, error) {
	cfg := config.Load()
	gdb, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		return nil, err
	}
	return st, nil
}

func runCreateApp(args []string) error {
	fs := flag.NewFlagSet("create-app", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "unique app name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("create-app: -name is required")
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	appID := randomToken(16)
	appSecret := randomToken(24)
	hasher := secret.NewArgon2id()
	hash, salt, params, err := hasher.Hash(appSecret)
	if err != nil {
		return err
	}

	app := &domain.App{
		AppName:      *name,
		AppID:        appID,
		SecretAlgo:   hasher.Algo(),
		SecretHash:   hash,
		SecretSalt:   salt,
		SecretParams: params,
		Token:        randomToken(24),
	}
	if err := st.Apps().Create(context.Background(), app); err != nil {
		return err
	}

	// The clear secret exists only in this output; it is stored hashed.
	out := struct {
		AppName   string `json:"app_name"`
		AppID     string `json:"app_id"`
		AppSecret string `json:"app_secret"`
		Token     string `json:"token"`
	}{*name, appID, appSecret, app.Token}
	return printJSON(out)
}

func runSetForward(args []string) error {
	fs := flag.NewFlagSet("set-forward", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	appID := fs.String("app", "", "app_id of the client app")
	url := fs.String("url", "", "webhook URL to post messages to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *appID == "" || *url == "" {
		return fmt.Errorf("set-forward: -app and -url are required")
	}
	if !strings.HasPrefix(*url, "http://") && !strings.HasPrefix(*url, "https://") {
		return fmt.Errorf("set-forward: url must be http(s)")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	app, err := st.Apps().GetByAppID(context.Background(), *appID)
	if err != nil {
		return err
	}
	err = st.Forwarding().UpsertConfig(context.Background(), &domain.ForwardConfig{
		AppID: app.ID,
		URL:   *url,
	})
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"app_id": *appID, "url": *url})
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
