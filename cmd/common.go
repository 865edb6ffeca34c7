package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leasescan/leasescan/internal/utils"
	"github.com/leasescan/leasescan/pkg/pricecache"
	"github.com/leasescan/leasescan/pkg/providers"
	"github.com/leasescan/leasescan/pkg/queue"
	"github.com/leasescan/leasescan/pkg/storage"
)

// resolveCacheDir prefers the flag over the config file.
func resolveCacheDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("cachedir"); dir != "" {
		return dir
	}
	return viper.GetString("cachedir")
}

// openStore resolves the queue database path, takes the single-driver lock,
// and opens the SQLite store. The returned closer releases both.
func openStore(cmd *cobra.Command) (*storage.DB, func(), error) {
	dbPath, _ := cmd.Flags().GetString("dbpath")
	absPath, err := utils.GetAbsDBPath(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := utils.EnsureParentDir(absPath); err != nil {
		return nil, nil, err
	}

	lock, err := utils.NewDBLock(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := lock.Lock(); err != nil {
		return nil, nil, err
	}

	db, err := storage.Open(absPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, nil, err
	}
	closer := func() {
		_ = db.Close()
		_ = lock.Unlock()
	}
	return db, closer, nil
}

// openQueue opens the store and restores the queue from it.
func openQueue(cmd *cobra.Command) (*queue.Queue, func(), error) {
	db, closer, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	q := queue.New(db,
		queue.WithLogger(utils.Log),
		queue.WithMaxAttempts(viper.GetInt("max_attempts")),
	)
	return q, closer, nil
}

// newCacheReader builds the price cache reader for the known providers.
func newCacheReader(cmd *cobra.Command, registry *providers.Registry) *pricecache.Reader {
	return &pricecache.Reader{
		Dir:   resolveCacheDir(cmd),
		Files: registry.CacheFiles(),
		Log:   utils.Log,
	}
}

// requireProvider validates the --provider flag against the registry.
func requireProvider(cmd *cobra.Command, registry *providers.Registry) (string, error) {
	id, _ := cmd.Flags().GetString("provider")
	if id == "" {
		return "", fmt.Errorf("--provider is required (available: %v)", registry.IDs())
	}
	if _, ok := registry.Get(id); !ok {
		return "", fmt.Errorf("unknown provider %q (available: %v)", id, registry.IDs())
	}
	return id, nil
}

func parsePriority(s string) (queue.Priority, error) {
	switch s {
	case "critical":
		return queue.PriorityCritical, nil
	case "high":
		return queue.PriorityHigh, nil
	case "normal":
		return queue.PriorityNormal, nil
	case "low":
		return queue.PriorityLow, nil
	}
	return 0, fmt.Errorf("invalid priority %q (critical, high, normal, low)", s)
}
