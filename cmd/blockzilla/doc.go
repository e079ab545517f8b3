// Copyright 2026 The Blockzilla Authors
// SPDX-License-Identifier: Apache-2.0

// Blockzilla is the CLI for the epoch archive compactor. It provides
// subcommands for building the account key registry (registry),
// producing the four-file compact format (optimize), inspecting either
// format (analyze), and dumping string table statistics (strings).
package main
