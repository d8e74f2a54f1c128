package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsmcp/configs"
	"github.com/Aman-CERP/docsmcp/internal/config"
	"github.com/Aman-CERP/docsmcp/internal/output"
	"github.com/Aman-CERP/docsmcp/pkg/version"
)

// MCPServerConfig represents one server entry in .mcp.json.
type MCPServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// MCPConfig represents the root .mcp.json structure.
type MCPConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

func newInitCmd() *cobra.Command {
	var (
		global     bool
		force      bool
		configOnly bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up DocsMCP",
		Long: `Set up DocsMCP for use with an MCP client.

This command:
1. Configures Claude Code MCP integration (via 'claude mcp add' or .mcp.json)
2. Creates the user configuration (~/.config/docsmcp/config.yaml)
3. Builds the initial index (unless --config-only)

After running, restart Claude Code to activate the MCP server.`,
		Example: `  # Set up for the current project
  docsmcp init

  # Set up globally (available in all projects)
  docsmcp init --global

  # Overwrite existing configuration
  docsmcp init --force

  # Configure only, skip the first crawl
  docsmcp init --config-only`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runInit(ctx, cmd, global, force, configOnly)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Configure for all projects (user scope)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "Configure only, skip the first crawl")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, global, force, configOnly bool) error {
	out := output.New(cmd.OutOrStdout())

	out.Statusf("🚀", "DocsMCP %s - Setting up...", version.Version)
	out.Newline()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	out.Statusf("📁", "Project: %s", absRoot)

	// Check if already initialized. Global setup goes through the claude
	// CLI and does not touch .mcp.json, so the check only applies to
	// project scope.
	mcpConfigPath := filepath.Join(absRoot, ".mcp.json")
	if !global && !force {
		if fileExists(mcpConfigPath) {
			isValid, warnings := validateExistingMCPConfig(mcpConfigPath)
			out.Newline()

			if !isValid && len(warnings) > 0 {
				out.Warning("Existing .mcp.json has configuration issues:")
				for _, w := range warnings {
					out.Statusf("  ⚠️ ", "%s", w)
				}
				out.Newline()
				out.Status("💡", "Use --force to fix these issues")
				return nil
			}

			out.Warning("Project already initialized (.mcp.json exists)")
			out.Status("💡", "Use --force to reinitialize")
			return nil
		}
	}

	// Step 1: Configure MCP
	out.Newline()
	out.Status("⚙️ ", "Configuring MCP integration...")

	mcpConfigured, err := configureMCP(ctx, out, absRoot, global, force)
	if err != nil {
		out.Warningf("MCP configuration failed: %v", err)
		out.Status("💡", "You can manually configure .mcp.json later")
	} else if mcpConfigured {
		if global {
			out.Success("Added MCP server (user scope - all projects)")
		} else {
			out.Success("Added MCP server (project scope)")
		}
	}

	// Step 2: User configuration with the crawl roots
	if err := writeUserConfig(out, force); err != nil {
		out.Warningf("Could not create user config: %v", err)
	}

	// Step 3: Optional per-project overrides (project scope only)
	if !global {
		if err := generateProjectConfig(out, absRoot); err != nil {
			out.Warningf("Could not create .docsmcp.yaml template: %v", err)
		}
	}

	// Step 4: First crawl (skip if --config-only)
	if configOnly {
		out.Newline()
		out.Status("⏭️ ", "Skipping first crawl (--config-only)")
	} else {
		cfg, err := config.Load(absRoot)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if !hasCrawlableSource(cfg) {
			out.Newline()
			out.Status("ℹ️ ", "No document roots found yet, skipping first crawl")
			out.Statusf("💡", "Edit %s and run 'docsmcp index'", config.GetUserConfigPath())
		} else {
			out.Newline()
			out.Status("📊", "Building the initial index...")

			startTime := time.Now()
			if err := runIndex(cmd, "", indexOptions{}); err != nil {
				return fmt.Errorf("first crawl failed: %w", err)
			}
			out.Newline()
			out.Statusf("⏱️ ", "Completed in %.1fs", time.Since(startTime).Seconds())
		}
	}

	// Final instructions
	out.Newline()
	if configOnly {
		out.Success("Configuration complete!")
	} else {
		out.Success("Setup complete!")
	}
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Restart Claude Code to activate the MCP server")
	out.Status("", "  2. Test with: \"Search my docs for...\"")
	out.Status("", "  3. Run 'docsmcp status' to check the index")

	if !mcpConfigured {
		out.Newline()
		out.Warning("MCP not auto-configured - manual setup required")
		out.Status("💡", fmt.Sprintf("Add to .mcp.json: %s", mcpConfigPath))
	}

	return nil
}

// hasCrawlableSource reports whether a first crawl has anything to do:
// an enabled remote source, or at least one local root that exists. The
// fresh user config lists roots like ~/Documents that may not exist on
// this machine; init skips those quietly and leaves the strict check to
// 'docsmcp index'.
func hasCrawlableSource(cfg *config.Config) bool {
	if cfg.Sources.GDrive.IsEnabled() {
		return true
	}
	if !cfg.Sources.Local.IsEnabled() {
		return false
	}
	for _, root := range cfg.Sources.Local.Roots {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// writeUserConfig creates ~/.config/docsmcp/config.yaml from the
// embedded template. An existing config is never overwritten without
// --force; the crawl roots in it are the user's to curate.
func writeUserConfig(out *output.Writer, force bool) error {
	path := config.GetUserConfigPath()

	if config.UserConfigExists() && !force {
		out.Statusf("ℹ️ ", "Existing user config preserved: %s", path)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	out.Statusf("📝", "Created %s", path)
	return nil
}

// generateProjectConfig creates a template .docsmcp.yaml if the project
// has none. Detected documentation directories are appended as crawl
// roots so the project is searchable without manual editing.
func generateProjectConfig(out *output.Writer, projectRoot string) error {
	yamlPath := filepath.Join(projectRoot, ".docsmcp.yaml")

	// Never overwrite user customizations, under either extension.
	if fileExists(yamlPath) {
		out.Status("ℹ️ ", "Existing .docsmcp.yaml preserved")
		return nil
	}
	if fileExists(filepath.Join(projectRoot, ".docsmcp.yml")) {
		out.Status("ℹ️ ", "Existing .docsmcp.yml found, skipping template")
		return nil
	}

	content := configs.ProjectConfigTemplate
	roots := config.DiscoverDocRoots(projectRoot)
	if len(roots) > 0 {
		var b strings.Builder
		b.WriteString(content)
		b.WriteString("\n# Detected documentation directories:\nsources:\n  local:\n    roots:\n")
		for _, r := range roots {
			fmt.Fprintf(&b, "      - %s\n", r)
		}
		content = b.String()
	}

	if err := os.WriteFile(yamlPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write .docsmcp.yaml: %w", err)
	}

	if len(roots) > 0 {
		out.Statusf("📝", "Created .docsmcp.yaml with %d detected root(s)", len(roots))
	} else {
		out.Statusf("📝", "Created .docsmcp.yaml (optional project configuration)")
	}
	return nil
}

// validateExistingMCPConfig checks if an existing .mcp.json has the
// fields the server needs to start in the right directory.
func validateExistingMCPConfig(mcpPath string) (bool, []string) {
	var warnings []string

	data, err := os.ReadFile(mcpPath)
	if err != nil {
		return false, nil
	}

	var mcpConfig MCPConfig
	if err := json.Unmarshal(data, &mcpConfig); err != nil {
		warnings = append(warnings, "Invalid JSON in .mcp.json")
		return false, warnings
	}

	entry, exists := mcpConfig.MCPServers["docsmcp"]
	if !exists {
		warnings = append(warnings, "DocsMCP not configured in .mcp.json")
		return false, warnings
	}

	if entry.Cwd == "" {
		warnings = append(warnings, "Missing 'cwd' field - MCP server may run from wrong directory")
	}
	if entry.Command == "" {
		warnings = append(warnings, "Missing 'command' field")
	}

	return len(warnings) == 0, warnings
}

// configureMCP attempts to configure MCP via claude CLI or falls back to
// .mcp.json.
func configureMCP(ctx context.Context, out *output.Writer, projectRoot string, global, force bool) (bool, error) {
	if claudeConfigured, err := configureViaClaude(ctx, out, projectRoot, global); err == nil && claudeConfigured {
		return true, nil
	}

	return configureViaMCPJSON(out, projectRoot, force)
}

// configureViaClaude attempts to use 'claude mcp add'. Only the user
// scope goes through the CLI; project scope needs the cwd field that
// only .mcp.json supports.
func configureViaClaude(ctx context.Context, out *output.Writer, projectRoot string, global bool) (bool, error) {
	if !global {
		out.Status("ℹ️ ", "Using .mcp.json for project scope (supports cwd)")
		return false, nil
	}

	claudePath, err := exec.LookPath("claude")
	if err != nil {
		out.Status("ℹ️ ", "Claude CLI not found, using .mcp.json fallback")
		return false, nil
	}

	out.Statusf("🔍", "Found Claude CLI: %s", claudePath)

	binPath, err := findDocsmcpBinary()
	if err != nil {
		return false, fmt.Errorf("failed to find docsmcp binary: %w", err)
	}

	args := []string{"mcp", "add", "--transport", "stdio", "--scope", "user"}
	args = append(args, "docsmcp", "--", binPath, "serve")

	claude := exec.CommandContext(ctx, claudePath, args...)
	claude.Dir = projectRoot
	claude.Stdout = os.Stdout
	claude.Stderr = os.Stderr

	if err := claude.Run(); err != nil {
		return false, fmt.Errorf("claude mcp add failed: %w", err)
	}

	return true, nil
}

// configureViaMCPJSON creates or updates .mcp.json in the project root.
func configureViaMCPJSON(out *output.Writer, projectRoot string, force bool) (bool, error) {
	mcpPath := filepath.Join(projectRoot, ".mcp.json")

	var existingConfig MCPConfig
	if data, err := os.ReadFile(mcpPath); err == nil {
		if err := json.Unmarshal(data, &existingConfig); err != nil {
			return false, fmt.Errorf("failed to parse existing .mcp.json: %w", err)
		}

		if _, exists := existingConfig.MCPServers["docsmcp"]; exists && !force {
			out.Status("ℹ️ ", "DocsMCP already configured in .mcp.json")
			return true, nil
		}
	} else {
		existingConfig = MCPConfig{
			MCPServers: make(map[string]MCPServerConfig),
		}
	}
	if existingConfig.MCPServers == nil {
		existingConfig.MCPServers = make(map[string]MCPServerConfig)
	}

	binPath, err := findDocsmcpBinary()
	if err != nil {
		return false, fmt.Errorf("failed to find docsmcp binary: %w", err)
	}

	existingConfig.MCPServers["docsmcp"] = MCPServerConfig{
		Type:    "stdio",
		Command: binPath,
		Args:    []string{"serve"},
		Cwd:     projectRoot,
	}

	data, err := json.MarshalIndent(existingConfig, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(mcpPath, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write .mcp.json: %w", err)
	}

	out.Statusf("📝", "Created %s", mcpPath)
	return true, nil
}

// findDocsmcpBinary locates the docsmcp binary.
func findDocsmcpBinary() (string, error) {
	execPath, err := os.Executable()
	if err == nil {
		// Resolve symlinks to get the real path
		realPath, err := filepath.EvalSymlinks(execPath)
		if err == nil {
			return realPath, nil
		}
		return execPath, nil
	}

	path, err := exec.LookPath("docsmcp")
	if err != nil {
		return "", fmt.Errorf("docsmcp not found in PATH: %w", err)
	}

	return path, nil
}
