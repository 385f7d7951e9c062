package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/KLM-Nandhu/bentsblog/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server exposing bentsblog tools",
	Long: `Run a Model Context Protocol (MCP) server that exposes bentsblog as tools.

Tools:
- get_video_metadata: video title, channel, dates, counts and description
- get_video_transcript: transcript via the shuffled retrieval methods
- get_video_comments: top comments in relevance order
- generate_blog_post: reorganize the transcript and write a blog post (paid)

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)

Logs go to $XDG_CACHE_HOME/bentsblog/mcp.log when mcp_log is enabled.`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  bentsblog mcp

  # Run MCP server with HTTP transport on port 8080
  bentsblog mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  bentsblog mcp setup-claude`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// stdio carries the protocol, so nothing may write progress output.
		app, err := newApp(cmd, internal.WithUI(internal.NewSilentUIManager()))
		if err != nil {
			return err
		}
		defer app.Close()

		return internal.NewMCPServer(app, version, logger).Start(cmd.Context(), transport, port)
	},
}

// setupClaudeCmd represents the setup-claude subcommand
var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Configure Claude Desktop to use the bentsblog MCP server",
	Long: `Automatically configure Claude Desktop to use bentsblog as an MCP server.

This command will:
- Detect Claude Desktop installation and config location
- Add the bentsblog MCP server configuration to claude_desktop_config.json
- Preserve existing MCP server configurations
- Set appropriate XDG environment variables for the current platform`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setupClaudeDesktop()
	},
}

// ClaudeDesktopConfig represents the claude_desktop_config.json structure
type ClaudeDesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
}

// MCPServerConfig represents an individual MCP server configuration
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// setupClaudeDesktop implements the setup-claude subcommand
func setupClaudeDesktop() error {
	// Get the path to the current binary
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}

	// Resolve symlinks to get the actual binary path
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	// Get Claude Desktop config path
	configPath, err := getClaudeDesktopConfigPath()
	if err != nil {
		return fmt.Errorf("getting Claude Desktop config path: %w", err)
	}

	env := map[string]string{
		"XDG_DATA_HOME":   xdg.DataHome,
		"XDG_CONFIG_HOME": xdg.ConfigHome,
		"XDG_CACHE_HOME":  xdg.CacheHome,
	}
	// The desktop app does not inherit the shell environment.
	if config.OpenAIAPIKey != "" {
		env["OPENAI_API_KEY"] = config.OpenAIAPIKey
	}
	if config.YouTubeAPIKey != "" {
		env["YOUTUBE_API_KEY"] = config.YouTubeAPIKey
	}

	if err := registerMCPServer(configPath, MCPServerConfig{
		Command: execPath,
		Args:    []string{"mcp"},
		Env:     env,
	}); err != nil {
		return err
	}

	fmt.Printf("Successfully configured Claude Desktop MCP server\n")
	fmt.Printf("Restart Claude Desktop to use the %s MCP server\n", internal.AppName)

	return nil
}

// registerMCPServer adds server to the desktop config at configPath under
// AppName, keeping other servers and unrelated settings.
func registerMCPServer(configPath string, server MCPServerConfig) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("config for Claude Desktop not found at %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("reading existing config: %w", err)
	}

	raw := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing existing config: %w", err)
		}
	}

	var desktop ClaudeDesktopConfig
	if servers, ok := raw["mcpServers"]; ok {
		if err := json.Unmarshal(servers, &desktop.MCPServers); err != nil {
			return fmt.Errorf("parsing mcpServers: %w", err)
		}
	}
	if desktop.MCPServers == nil {
		desktop.MCPServers = make(map[string]MCPServerConfig)
	}
	desktop.MCPServers[internal.AppName] = server

	servers, err := json.Marshal(desktop.MCPServers)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	raw["mcpServers"] = servers

	data, err = json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// getClaudeDesktopConfigPath returns the platform-specific config path for Claude Desktop
func getClaudeDesktopConfigPath() (string, error) {
	var configPath string

	switch runtime.GOOS {
	case "darwin":
		// macOS: ~/Library/Application Support/Claude/claude_desktop_config.json
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configPath = filepath.Join(homeDir, "Library", "Application Support", "Claude", "claude_desktop_config.json")

	case "windows":
		// Windows: %APPDATA%/Claude/claude_desktop_config.json
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configPath = filepath.Join(appData, "Claude", "claude_desktop_config.json")

	case "linux":
		// Linux: ~/.config/Claude/claude_desktop_config.json
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configPath = filepath.Join(homeDir, ".config", "Claude", "claude_desktop_config.json")

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return configPath, nil
}

func init() {
	internal.AddTranscriptionFlags(mcpCmd)
	internal.AddOpenAIFlags(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
