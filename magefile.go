//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	tmpDir  = "tmp"
	appName = "gpwdeba-web"
)

var Default = Dev

// Dev: tidy, then hot-reload with air if available, else go run
func Dev() error {
	mg.Deps(Tidy)

	if _, err := exec.LookPath("air"); err == nil {
		fmt.Println("Starting hot-reload with air ...")
		return sh.RunV("air")
	}

	fmt.Println("air not found. Falling back to `go run ./cmd/web`.")
	fmt.Println("Install with: mage Tools")
	return Run()
}

// Run: go run ./cmd/web
func Run() error {
	return sh.RunV("go", "run", "./cmd/web")
}

// Build: compile the server binary into bin/
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}
	out := filepath.Join(binDir, appName)
	if runtime.GOOS == "windows" {
		out += ".exe"
	}
	fmt.Println("Building", out, "...")
	return sh.RunV("go", "build", "-o", out, "./cmd/web")
}

// Tidy: go mod tidy
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// Test: run all tests with the race detector
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint: golangci-lint if installed
func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		return fmt.Errorf("golangci-lint not found. Install with: mage Tools")
	}
	return sh.RunV("golangci-lint", "run", "./...")
}

// Tools: install dev tooling
func Tools() error {
	tools := []string{
		"github.com/air-verse/air@latest",
		"github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest",
	}
	for _, t := range tools {
		fmt.Println("Installing", t, "...")
		if err := sh.RunV("go", "install", t); err != nil {
			return err
		}
	}
	return nil
}

// Clean: remove build artifacts
func Clean() error {
	for _, d := range []string{binDir, tmpDir} {
		if err := os.RemoveAll(d); err != nil {
			return err
		}
	}
	return nil
}
