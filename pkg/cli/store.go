package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/funvibe/monc/internal/modstore"
)

func (e *env) handleStore(args []string) error {
	fs := e.newFlagSet(cmdStore)
	var common commonFlags
	common.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(e.stderr, "Usage: monc store put|get|ls|rm ...")
		return errUsage
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	e.initLogging(common.verbose, common.noColor || cfg.NoColor)

	sub, rest := fs.Arg(0), fs.Args()[1:]
	want := map[string]int{"put": 2, "get": 2, "ls": 0, "rm": 1}
	n, ok := want[sub]
	if !ok {
		fmt.Fprintf(e.stderr, "Unknown store command: %s\n", sub)
		return errUsage
	}
	if len(rest) != n {
		fmt.Fprintf(e.stderr, "store %s takes %d arguments, got %d\n", sub, n, len(rest))
		return errUsage
	}

	store, err := modstore.Open(e.ctx, cfg.StorePath())
	if err != nil {
		return err
	}
	defer store.Close()

	switch sub {
	case "put":
		data, err := os.ReadFile(rest[1])
		if err != nil {
			return err
		}
		entry, err := store.PutBundle(e.ctx, rest[0], data)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "stored %s (%s)\n", entry.Name, shortDigest(entry.Digest))
	case "get":
		data, _, err := store.GetBundle(e.ctx, rest[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(rest[1], data, 0o644); err != nil {
			return err
		}
	case "ls":
		entries, err := store.List(e.ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDIGEST\tSIZE\tUPDATED")
		for _, en := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", en.Name, shortDigest(en.Digest), en.Size, en.UpdatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	case "rm":
		return store.Delete(e.ctx, rest[0])
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
