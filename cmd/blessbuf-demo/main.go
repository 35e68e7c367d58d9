// Command blessbuf-demo exercises a blessbuf.Buffer end to end against a
// real file: append/insert/delete a few ranges, print the result, save,
// and report whether the save needed to spill any overlapping bytes.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gaby/blessbuf"
	"github.com/gaby/blessbuf/dataobject"
	"github.com/gaby/blessbuf/internal/options"
)

func main() {
	var path string
	var verbose bool
	flag.StringVar(&path, "file", "", "path to a file to load, edit, and save")
	flag.BoolVar(&verbose, "v", false, "enable debug logging")
	flag.Parse()

	if path == "" {
		log.Fatal("blessbuf-demo: -file is required")
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		log.Fatalf("blessbuf-demo: open %s: %v", path, err)
	}
	defer f.Close()

	fileSrc, err := dataobject.FromFile(int(f.Fd()))
	if err != nil {
		log.Fatalf("blessbuf-demo: wrap %s: %v", path, err)
	}

	buf := blessbuf.New(logger)
	defer buf.Close()

	if err := buf.SetOption(options.UndoLimit, "64"); err != nil {
		log.Fatalf("blessbuf-demo: set undo limit: %v", err)
	}

	size := fileSrc.Length()
	if err := buf.Append(fileSrc, 0, size); err != nil {
		log.Fatalf("blessbuf-demo: load %s: %v", path, err)
	}
	if err := fileSrc.Unref(); err != nil {
		log.Fatalf("blessbuf-demo: unref file source: %v", err)
	}
	logger.Info("loaded file", "path", path, "bytes", size)

	if size >= 4 {
		buf.BeginMultiAction()
		if err := buf.Delete(0, 2); err != nil {
			log.Fatalf("blessbuf-demo: delete: %v", err)
		}
		banner, err := dataobject.FromMemory([]byte("ok"), nil)
		if err != nil {
			log.Fatalf("blessbuf-demo: wrap memory source: %v", err)
		}
		if err := buf.Insert(0, banner, 0, 2); err != nil {
			log.Fatalf("blessbuf-demo: insert: %v", err)
		}
		if err := banner.Unref(); err != nil {
			log.Fatalf("blessbuf-demo: unref memory source: %v", err)
		}
		if err := buf.EndMultiAction(); err != nil {
			log.Fatalf("blessbuf-demo: end multi action: %v", err)
		}
		logger.Info("edited", "rev_id", buf.RevisionID(), "size", buf.Size())
	}

	if err := buf.Save(int(f.Fd()), nil); err != nil {
		log.Fatalf("blessbuf-demo: save: %v", err)
	}
	logger.Info("saved", "save_rev_id", buf.SaveRevisionID(), "size", buf.Size())

	if buf.CanUndo() {
		if err := buf.Undo(); err != nil {
			logger.Warn("undo after save failed", "error", err)
		} else {
			logger.Info("undo after save succeeded", "rev_id", buf.RevisionID())
		}
	}
}
