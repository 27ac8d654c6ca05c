package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/outpost-sh/outpost/internal/api"
	"github.com/outpost-sh/outpost/internal/auth"
	"github.com/outpost-sh/outpost/internal/config"
	"github.com/outpost-sh/outpost/internal/events"
	"github.com/outpost-sh/outpost/internal/instance/minecraft"
	"github.com/outpost-sh/outpost/internal/ports"
	"github.com/outpost-sh/outpost/internal/registry"
	"github.com/outpost-sh/outpost/internal/store"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	users, err := openStore(cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open user store")
	}
	defer users.Close()

	if err := seedOwner(users); err != nil {
		logrus.WithError(err).Fatal("failed to seed owner account")
	}

	if err := os.MkdirAll(cfg.InstancesDir(), 0o755); err != nil {
		logrus.WithError(err).Fatal("failed to create instances directory")
	}

	reg := registry.New()
	alloc := ports.NewAllocator()
	bus := events.NewBus()
	factory := minecraft.NewFactory()

	restored, err := factory.Restore(cfg.InstancesDir())
	if err != nil {
		logrus.WithError(err).Fatal("failed to restore instances")
	}
	for _, inst := range restored {
		reg.Insert(inst)
		alloc.Allocate(inst.Port())
		logrus.WithFields(logrus.Fields{
			"instance": inst.Name(),
			"uuid":     inst.ID(),
			"port":     inst.Port(),
		}).Info("restored instance")
	}

	gate := auth.NewGate(users, []byte(cfg.JWTSecret))
	server := api.NewServer(gate, users, reg, alloc, bus, factory, cfg.InstancesDir(), cfg.CORSOrigins)

	addr := ":" + cfg.Port
	logrus.WithFields(logrus.Fields{
		"addr":      addr,
		"instances": reg.Len(),
	}).Info("outpostd listening")
	if err := http.ListenAndServe(addr, server); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}

// openStore picks the backend from the database URL: a postgres:// URL uses
// Postgres, anything else is treated as a SQLite file path.
func openStore(databaseURL string) (store.Store, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.NewPostgresStore(ctx, databaseURL)
	}
	db, err := store.InitDB(databaseURL)
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(db), nil
}

// seedOwner creates the owner account on first run with a generated password,
// logged exactly once. Operators should change it immediately.
func seedOwner(users store.Store) error {
	existing, err := users.GetUserByUsername("owner")
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	password := hex.EncodeToString(raw)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	owner := &store.User{
		ID:           uuid.New().String(),
		Username:     "owner",
		PasswordHash: hash,
		Role:         store.RoleOwner,
		CanCreate:    true,
		CanDelete:    true,
		ViewAll:      true,
		CreatedAt:    time.Now(),
	}
	if err := users.CreateUser(owner); err != nil {
		return err
	}

	logrus.WithField("password", password).Warn("created owner account, change this password now")
	return nil
}
