package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

var ErrNoPrinter = errors.New("no printer configured")

// Printer hands a one-page document to the print system.
type Printer interface {
	Print(ctx context.Context, doc Artifact) error
}

// SpoolPrinter drops documents into a directory watched by the print
// server. When Command is set it is run with the spooled file as its last
// argument, e.g. ["lp", "-d", "bar"].
type SpoolPrinter struct {
	Dir     string
	Command []string
}

func (p SpoolPrinter) Print(ctx context.Context, doc Artifact) error {
	if p.Dir == "" {
		return ErrNoPrinter
	}
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}
	path := filepath.Join(p.Dir, filepath.Base(doc.Name))
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return fmt.Errorf("spool %s: %w", doc.Name, err)
	}
	if len(p.Command) == 0 {
		return nil
	}

	args := append(append([]string(nil), p.Command[1:]...), path)
	out, err := exec.CommandContext(ctx, p.Command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("print command %s: %w: %s", p.Command[0], err, out)
	}
	return nil
}
