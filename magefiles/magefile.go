//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for duet using Mage.
//
// Usage:
//
//	mage build      Compile the duet binary to bin/
//	mage test       Run all tests
//	mage testUnit   Run tests without the race detector, skipping the CLI package
//	mage lint       Run golangci-lint
//	mage clean      Remove build artifacts
//	mage install    Install duet to GOPATH/bin
//	mage stats      Print Go LOC per package
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "duet"
	binaryDir  = "bin"
	cmdDir     = "./cmd/duet"
	cliPkg     = "github.com/mesh-intelligence/duet/internal/cli"
)

// ldflags stamps the release from $DUET_VERSION when set.
func ldflags() []string {
	version := os.Getenv("DUET_VERSION")
	if version == "" {
		return nil
	}
	return []string{"-ldflags", "-X " + cliPkg + ".Version=" + strings.TrimPrefix(version, "v")}
}

// Build compiles the duet binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := append([]string{"build", "-v"}, ldflags()...)
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV(binGo, args...)
}

// Test runs every package's tests with the race detector.
func Test() error {
	return sh.RunV(binGo, "test", "-race", "./...")
}

// TestUnit runs the library packages only. The CLI tests attach real stores
// and start HTTP servers, so they are left to Test.
func TestUnit() error {
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	var unit []string
	for pkg := range strings.SplitSeq(pkgs, "\n") {
		if pkg != "" && pkg != cliPkg {
			unit = append(unit, pkg)
		}
	}
	return sh.RunV(binGo, append([]string{"test"}, unit...)...)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
