package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/routecodex/routecodex/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the router's provider bindings and route definitions.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for a single provider binding and a catch-all route.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate example YAML configuration",
	Long:  `Generate an example YAML configuration file with a starter binding and route.`,
	RunE:  runConfigGenerate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configGenerateCmd)

	configGenerateCmd.Flags().BoolP("force", "f", false, "Overwrite existing configuration file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("RouteCodex Configuration Setup")
	color.Yellow("Follow the prompts to configure your first provider binding.")

	reader := bufio.NewReader(os.Stdin)

	providerID, err := prompt(reader, "Provider ID (e.g., openai-main): ")
	if err != nil {
		return err
	}

	protocol, err := prompt(reader, "Protocol (openai-chat|openai-responses|anthropic-messages|gemini-chat): ")
	if err != nil {
		return err
	}

	family, err := prompt(reader, "Family (openai|anthropic|gemini|gemini-cli|qwen|glm|iflow|antigravity): ")
	if err != nil {
		return err
	}

	baseURL, err := prompt(reader, "Base URL: ")
	if err != nil {
		return err
	}

	apiKey, err := prompt(reader, "API Key: ")
	if err != nil {
		return err
	}

	routerAPIKey, err := prompt(reader, "Router API Key (optional, required from clients): ")
	if err != nil {
		return err
	}

	cfg := &config.Config{
		Host:   config.DefaultHost,
		Port:   config.DefaultPort,
		APIKey: routerAPIKey,
		Bindings: []config.ProviderBinding{
			{
				ProviderID: providerID,
				Protocol:   protocol,
				Family:     family,
				BaseURL:    baseURL,
				AuthMode:   "bearer",
				APIKey:     apiKey,
			},
		},
		Routes: []config.RouteConfig{
			{
				ID:         "default",
				ModelRegex: ".*",
				Default:    true,
				Modules: []config.ModuleSpecConfig{
					{Type: "provider", Config: map[string]any{"providerId": providerID}},
					{Type: "compatibility"},
					{Type: "llmswitch"},
				},
			},
		},
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start the router with: routecodex start")

	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)

	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("error reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'routecodex config init' or 'routecodex config generate' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-15s: %s\n", "Host", cfg.Host)
	fmt.Printf("  %-15s: %d\n", "Port", cfg.Port)
	fmt.Printf("  %-15s: %s\n", "API Key", maskString(cfg.APIKey))
	fmt.Printf("  %-15s: %s\n", "Config Path", cfgMgr.GetPath())

	configType := "JSON"
	if cfgMgr.HasYAML() {
		configType = "YAML"
	}

	fmt.Printf("  %-15s: %s\n", "Format", configType)

	fmt.Println("\nProvider Bindings:")

	for _, binding := range cfg.Bindings {
		fmt.Printf("  - %s (%s/%s)\n", binding.ProviderID, binding.Protocol, binding.Family)
		fmt.Printf("    URL: %s\n", binding.BaseURL)
		fmt.Printf("    Auth: %s, API Key: %s\n", binding.AuthMode, maskString(binding.APIKey))
	}

	fmt.Println("\nRoutes:")

	for _, route := range cfg.Routes {
		marker := ""
		if route.Default {
			marker = " (default)"
		}

		fmt.Printf("  - %s%s: model ~= %q, %d modules\n", route.ID, marker, route.ModelRegex, len(route.Modules))
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return errors.New("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var validationErrors []string

	if len(cfg.Bindings) == 0 {
		validationErrors = append(validationErrors, "no provider bindings configured")
	}

	for i, binding := range cfg.Bindings {
		if binding.ProviderID == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("binding %d: providerId is required", i))
		}

		if binding.Protocol == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("binding %d: protocol is required", i))
		}

		if binding.BaseURL == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("binding %d: base URL is required", i))
		}
	}

	if len(cfg.Routes) == 0 {
		validationErrors = append(validationErrors, "no routes configured")
	}

	hasDefault := false

	for i, rt := range cfg.Routes {
		if rt.ID == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("route %d: id is required", i))
		}

		if len(rt.Modules) == 0 || rt.Modules[len(rt.Modules)-1].Type != "llmswitch" {
			validationErrors = append(validationErrors, fmt.Sprintf("route %q: last module must be llmswitch", rt.ID))
		}

		if rt.Default {
			hasDefault = true
		}
	}

	if !hasDefault {
		validationErrors = append(validationErrors, "no default route declared")
	}

	if len(validationErrors) > 0 {
		color.Red("Configuration validation failed:")

		for _, msg := range validationErrors {
			fmt.Printf("  - %s\n", msg)
		}

		return errors.New("configuration validation failed")
	}

	color.Green("Configuration is valid!")

	return nil
}

func runConfigGenerate(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if cfgMgr.Exists() && !force {
		configType := "JSON"
		if cfgMgr.HasYAML() {
			configType = "YAML"
		}

		color.Yellow("Configuration file already exists (%s format): %s", configType, cfgMgr.GetPath())
		color.Cyan("Use --force to overwrite, or 'routecodex config show' to view current config")

		return nil
	}

	if err := cfgMgr.CreateExampleYAML(); err != nil {
		return fmt.Errorf("failed to create example configuration: %w", err)
	}

	color.Green("Example YAML configuration created: %s", cfgMgr.GetYAMLPath())
	color.Cyan("\nNext steps:")
	fmt.Println("1. Edit the configuration file to add your API keys")
	fmt.Println("2. Add additional provider bindings and routes as needed")
	fmt.Println("3. Run 'routecodex config validate' to check your configuration")
	fmt.Println("4. Start the router with 'routecodex start'")

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}

	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}

	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
