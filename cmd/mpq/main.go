// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

// Command mpq inspects and builds MPQ archives.
//
//	mpq list <archive>
//	mpq view <archive> <file>
//	mpq extract [-o dir] [-f pattern] <archive>
//	mpq create [-C dir] <archive> [file ...]
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/w3tools/mpq"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("mpq: ")

	if len(os.Args) < 2 {
		usage()
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = cmdList(os.Args[2:])
	case "view":
		err = cmdView(os.Args[2:])
	case "extract":
		err = cmdExtract(os.Args[2:])
	case "create":
		err = cmdCreate(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  mpq list <archive>
  mpq view <archive> <file>
  mpq extract [-o dir] [-f pattern] <archive>
  mpq create [-C dir] <archive> [file ...]`)
	os.Exit(2)
}

func openArchive(name string) (*mpq.Archive, *os.File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	a, err := mpq.Open(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return a, f, nil
}

func cmdList(args []string) error {
	fl := flag.NewFlagSet("list", flag.ExitOnError)
	fl.Parse(args)
	if fl.NArg() != 1 {
		usage()
	}

	a, f, err := openArchive(fl.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := a.Files()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func cmdView(args []string) error {
	fl := flag.NewFlagSet("view", flag.ExitOnError)
	fl.Parse(args)
	if fl.NArg() != 2 {
		usage()
	}

	a, f, err := openArchive(fl.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := a.ReadFile(fl.Arg(1))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func cmdExtract(args []string) error {
	fl := flag.NewFlagSet("extract", flag.ExitOnError)
	outDir := fl.String("o", ".", "output directory")
	pattern := fl.String("f", "", "only extract files matching this glob")
	fl.Parse(args)
	if fl.NArg() != 1 {
		usage()
	}

	a, f, err := openArchive(fl.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	names, err := a.Files()
	if err != nil {
		return err
	}

	for _, name := range names {
		if *pattern != "" {
			ok, err := path.Match(strings.ToLower(*pattern), strings.ToLower(name))
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}

		clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
		if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
			log.Printf("skipping unsafe path %q", name)
			continue
		}

		data, err := a.ReadFile(name)
		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}

		dst := filepath.Join(*outDir, filepath.FromSlash(clean))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
		log.Printf("extracted %s (%d bytes)", name, len(data))
	}
	return nil
}

func cmdCreate(args []string) error {
	fl := flag.NewFlagSet("create", flag.ExitOnError)
	srcDir := fl.String("C", "", "add every file under this directory")
	fl.Parse(args)
	if fl.NArg() < 1 {
		usage()
	}

	c := mpq.NewCreator()
	opts := mpq.FileOptions{Compress: true}

	add := func(diskPath, archivePath string) error {
		data, err := os.ReadFile(diskPath)
		if err != nil {
			return err
		}
		return c.AddFile(archivePath, data, opts)
	}

	if *srcDir != "" {
		err := filepath.WalkDir(*srcDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(*srcDir, p)
			if err != nil {
				return err
			}
			return add(p, filepath.ToSlash(rel))
		})
		if err != nil {
			return err
		}
	}

	for _, p := range fl.Args()[1:] {
		if err := add(p, filepath.ToSlash(p)); err != nil {
			return err
		}
	}

	out, err := os.Create(fl.Arg(0))
	if err != nil {
		return err
	}
	defer out.Close()

	return c.Write(out)
}
