//go:build mage

// Package main provides build targets for daystreak using Mage.
//
// Usage:
//
//	mage build     Compile the daystreak binary to bin/
//	mage test      Run all tests
//	mage testRace  Run all tests with the race detector
//	mage lint      Run golangci-lint
//	mage clean     Remove build artifacts
//	mage install   Install daystreak to GOPATH/bin
package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "daystreak"
	binaryDir  = "bin"
	cmdDir     = "./cmd/daystreak"
)

var Default = Build

// Build compiles the daystreak binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestRace runs all tests with -race.
func TestRace() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	return os.RemoveAll(binaryDir)
}

// Install builds and installs daystreak to GOPATH/bin.
func Install() error {
	mg.Deps(Test)
	return sh.RunV("go", "install", cmdDir)
}
