package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/tuiplug/internal/plugin"
	"github.com/dshills/tuiplug/internal/plugin/protocol"
	"github.com/dshills/tuiplug/internal/plugin/sandbox"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Load and validate a plugin manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := plugin.LoadManifest(args[0])
			if err != nil {
				return fmt.Errorf("invalid: %w", err)
			}
			cmd.Printf("ok: %s (%s backend, entry %s)\n",
				m, m.ResolveBackend(), m.Backend.Entry)
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <manifest>",
		Short: "Show a plugin's identity, capabilities, and permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := plugin.LoadManifest(args[0])
			if err != nil {
				return err
			}

			cmd.Printf("id:          %s\n", m.Plugin.ID)
			cmd.Printf("name:        %s\n", m.Plugin.Name)
			cmd.Printf("version:     %s\n", m.Plugin.Version)
			if m.Plugin.Description != "" {
				cmd.Printf("description: %s\n", m.Plugin.Description)
			}
			if m.Plugin.Author != "" {
				cmd.Printf("author:      %s\n", m.Plugin.Author)
			}
			cmd.Printf("backend:     %s (%s)\n", m.ResolveBackend(), m.Backend.Entry)

			if caps := m.Capabilities.Names(); len(caps) > 0 {
				cmd.Printf("capabilities: %s\n", strings.Join(caps, ", "))
			}
			if perms := m.Permissions.Summary(); len(perms) > 0 {
				cmd.Printf("permissions:  %s\n", strings.Join(perms, ", "))
			}
			for name, rng := range m.Dependencies {
				cmd.Printf("dependency:   %s %s\n", name, rng)
			}
			return nil
		},
	}
}

func newRunCmd(verbose *bool) *cobra.Command {
	var (
		sandboxName string
		command     string
	)

	cmd := &cobra.Command{
		Use:   "run <plugin-dir>",
		Short: "Load a plugin, send it events, and print its responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sandboxByName(sandboxName)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if *verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			p, err := plugin.LoadFromDir(args[0], cfg, plugin.WithLuaLogger(logger))
			if err != nil {
				return err
			}

			ctx := plugin.NewContextBuilder("tuiplug", version).
				OnLog(func(lvl protocol.LogLevel, msg string) {
					logger.Info(msg, "source", "plugin", "level", string(lvl))
				}).
				OnNotify(func(msg string) {
					cmd.Printf("notify: %s\n", msg)
				}).
				OnRunCommand(func(name string, args map[string]any) error {
					cmd.Printf("run_command: %s %v\n", name, args)
					return nil
				}).
				OnSetClipboard(func(text string) error {
					cmd.Printf("set_clipboard: %s\n", text)
					return nil
				}).
				Build()

			host := plugin.NewHost(ctx, plugin.WithHostLogger(logger))
			if err := host.Register(p); err != nil {
				return err
			}
			if err := host.InitAll(); err != nil {
				return err
			}
			defer host.ShutdownAll()

			for _, c := range p.GetCommands() {
				cmd.Printf("command: %s (%s)\n", c.ID, c.Label)
			}

			printResponses(cmd, host.Dispatch(&protocol.LifecycleEvent{Phase: protocol.PhaseReady}))
			if command != "" {
				printResponses(cmd, host.Dispatch(protocol.NewCommandEvent(command)))
			}
			printResponses(cmd, host.Dispatch(&protocol.LifecycleEvent{Phase: protocol.PhaseShuttingDown}))

			if lp, ok := p.(*plugin.LuaPlugin); ok {
				for _, v := range lp.Violations() {
					cmd.Printf("violation: %s: %s\n", v.Type, v.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sandboxName, "sandbox", "default",
		"sandbox preset: default, permissive, or restrictive")
	cmd.Flags().StringVar(&command, "command", "",
		"command event to dispatch after the plugin is ready")
	return cmd
}

func sandboxByName(name string) (sandbox.Config, error) {
	switch name {
	case "default":
		return sandbox.Default(), nil
	case "permissive":
		return sandbox.Permissive(), nil
	case "restrictive":
		return sandbox.Restrictive(), nil
	default:
		return sandbox.Config{}, fmt.Errorf("unknown sandbox preset %q", name)
	}
}

func printResponses(cmd *cobra.Command, responses []*protocol.Response) {
	for _, r := range responses {
		data, err := protocol.EncodeResponse(r)
		if err != nil {
			cmd.PrintErrf("encode response: %v\n", err)
			continue
		}
		cmd.Printf("response: %s\n", data)
	}
}
