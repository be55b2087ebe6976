// Package lib provides pack, unpack and list functions for ICE archives.
// This package re-exports the functionality from the core package so
// embedders depend on one stable import path.
package lib

import (
	"context"

	"icepak/pkg/core"
)

// Constants for archive format re-exported from core
const (
	Magic   = core.Magic   // Magic number to identify the archive
	Version = core.Version // Archive format version
)

// Types re-exported from core
type (
	Archive       = core.Archive
	Entry         = core.Entry
	File          = core.File
	Group         = core.Group
	AllowList     = core.AllowList
	PackOptions   = core.PackOptions
	UnpackOptions = core.UnpackOptions
	Scope         = core.Scope
)

// Re-export groups and scopes
const (
	Group1   = core.Group1
	Group2   = core.Group2
	ScopeAll = core.ScopeAll
	ScopePSO = core.ScopePSO
	ScopeNGS = core.ScopeNGS
)

// NewAllowList is a wrapper around core.NewAllowList
func NewAllowList(names ...string) AllowList {
	return core.NewAllowList(names...)
}

// Pack is a wrapper around core.Pack
func Pack(files []File, allow AllowList, opts PackOptions) ([]byte, error) {
	return core.Pack(files, allow, opts)
}

// PackDir packs inputDir with the given allow list.
func PackDir(ctx context.Context, inputDir string, recursive bool, allow AllowList, opts PackOptions) ([]byte, error) {
	return core.PackDir(ctx, inputDir, core.DirPackOptions{
		PackOptions: opts,
		Recursive:   recursive,
		AllowList:   allow,
	})
}

// Unpack is a wrapper around core.Unpack
func Unpack(data []byte) (*Archive, error) {
	return core.Unpack(data)
}

// UnpackFile is a wrapper around core.UnpackFile
func UnpackFile(ctx context.Context, inputArchive, outputDir string, createSubdir, separateByGroup bool) error {
	_, err := core.UnpackFile(ctx, inputArchive, outputDir, core.UnpackOptions{
		CreateSubdir:    createSubdir,
		SeparateByGroup: separateByGroup,
	})
	return err
}

// List is a wrapper around core.ListPath
func List(ctx context.Context, inputArchiveOrDir string) ([]string, error) {
	return core.ListPath(ctx, inputArchiveOrDir)
}

// IsIceFile reports whether data looks like an ICE archive.
func IsIceFile(data []byte) bool {
	return core.IsIceMagic(data)
}

// Hash is a wrapper around core.Hash
func Hash(data []byte) string {
	return core.Hash(data)
}
