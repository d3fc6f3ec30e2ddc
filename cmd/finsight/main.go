// Copyright 2025 FinSight AI
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command finsight is the CLI for the FinSight chat pipeline.
//
// Usage:
//
//	finsight ask "What are the key risk factors?" --doc https://example.com/filing.pdf
//	finsight ask "Compare revenue growth" --conversation conversation.yaml
//	finsight ingest --conversation conversation.yaml
//	finsight version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	finsight "github.com/finsightai/finsight"
	"github.com/finsightai/finsight/pkg/chat"
	"github.com/finsightai/finsight/pkg/config"
	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/logger"
	"github.com/finsightai/finsight/pkg/observability"
	"github.com/finsightai/finsight/pkg/schema"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Ask     AskCmd     `cmd:"" help:"Ask a question about a set of documents."`
	Ingest  IngestCmd  `cmd:"" help:"Build indices for a set of documents ahead of time."`

	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
	Verbose  bool   `short:"v" help:"Verbose pipeline logging."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(finsight.GetVersion().String())
	return nil
}

// conversationFile is the YAML shape accepted by --conversation.
type conversationFile struct {
	Documents []struct {
		ID  string `yaml:"id"`
		URL string `yaml:"url"`
		Sec *struct {
			CompanyName   string `yaml:"company_name"`
			CompanyTicker string `yaml:"company_ticker"`
			DocType       string `yaml:"doc_type"`
			Year          int    `yaml:"year"`
			Quarter       int    `yaml:"quarter"`
		} `yaml:"sec,omitempty"`
	} `yaml:"documents"`
}

// loadDocuments builds the document set from --conversation and --doc.
func loadDocuments(conversationPath string, docURLs []string) ([]schema.Document, error) {
	var docs []schema.Document

	if conversationPath != "" {
		data, err := os.ReadFile(conversationPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read conversation file: %w", err)
		}
		var file conversationFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse conversation file: %w", err)
		}
		for _, d := range file.Documents {
			doc := schema.Document{ID: d.ID, URL: d.URL}
			if doc.ID == "" {
				doc.ID = uuid.NewString()
			}
			if d.Sec != nil {
				doc.MetadataMap = map[string]any{
					schema.DocumentMetadataKeySECDocument: map[string]any{
						"company_name":   d.Sec.CompanyName,
						"company_ticker": d.Sec.CompanyTicker,
						"doc_type":       d.Sec.DocType,
						"year":           d.Sec.Year,
						"quarter":        d.Sec.Quarter,
					},
				}
			}
			docs = append(docs, doc)
		}
	}

	for _, url := range docURLs {
		docs = append(docs, schema.Document{ID: uuid.NewString(), URL: url})
	}

	return docs, nil
}

// AskCmd asks a question about an ad-hoc conversation.
type AskCmd struct {
	Question     string   `arg:"" help:"The question to ask."`
	Doc          []string `help:"Document URL to discuss (repeatable)."`
	Conversation string   `help:"YAML file describing the conversation documents." type:"path"`
	ShowEvents   bool     `help:"Print sub-process events as they happen." default:"true" negatable:""`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cli.Verbose {
		cfg.Verbose = true
	}

	shutdown, err := observability.SetupTracing(ctx, observability.TracerConfig{
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	docs, err := loadDocuments(c.Conversation, c.Doc)
	if err != nil {
		return err
	}

	builder, err := chat.NewEngineBuilder(cfg)
	if err != nil {
		return err
	}

	conversation := schema.Conversation{
		ID:        uuid.NewString(),
		Documents: docs,
	}

	stream := chat.NewStream()
	errCh := make(chan error, 1)
	go func() {
		errCh <- chat.HandleChatMessage(ctx, builder, conversation,
			schema.UserMessageCreate{Content: c.Question}, stream)
	}()

	printed := 0
	consume := func(ev chat.Event) {
		switch {
		case ev.Message != nil:
			// Snapshots replace each other; print only the new tail.
			content := ev.Message.Content
			if printed > len(content) {
				printed = 0
				fmt.Println()
			}
			fmt.Print(content[printed:])
			printed = len(content)
		case ev.SubProcess != nil && c.ShowEvents:
			state := "started"
			if ev.SubProcess.HasEnded {
				state = "finished"
			}
			fmt.Fprintf(os.Stderr, "[%s %s]\n", ev.SubProcess.Source, state)
		}
	}

	for {
		select {
		case ev := <-stream.Events():
			consume(ev)
		case <-stream.Done():
			for _, ev := range stream.Drain() {
				consume(ev)
			}
			fmt.Println()
			return <-errCh
		}
	}
}

// IngestCmd builds indices ahead of time so the first question is fast.
type IngestCmd struct {
	Doc          []string `help:"Document URL to ingest (repeatable)."`
	Conversation string   `help:"YAML file describing the documents." type:"path"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	docs, err := loadDocuments(c.Conversation, c.Doc)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents given; use --doc or --conversation")
	}

	builder, err := chat.NewEngineBuilder(cfg)
	if err != nil {
		return err
	}

	// Building a throwaway engine ingests anything missing.
	if _, err := builder.BuildChatEngine(ctx, schema.Conversation{
		ID:        uuid.NewString(),
		Documents: docs,
	}, nil); err != nil {
		return err
	}

	index.InvalidateStorageContextCache()
	fmt.Printf("Ingested %d document(s).\n", len(docs))
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("finsight"),
		kong.Description("Chat with SEC filings using a retrieval-augmented pipeline."),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cleanup, err := logger.Setup(logger.Options{
		Level:   level,
		Verbose: cli.Verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := kctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
