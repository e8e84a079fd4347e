package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabalioglu/vidgen/internal/build"
	"github.com/sabalioglu/vidgen/internal/config"

	"github.com/urfave/cli/v2"
)

// configureAction генерує конфігурацію з шаблону
func configureAction(c *cli.Context) error {
	templatePath := c.String("template")
	outputPath := c.String("output")
	version := c.String("version")
	mode := c.String("mode")

	fmt.Printf("🔧 Configuring VideoGen web server\n")
	fmt.Printf("Template: %s\n", templatePath)
	fmt.Printf("Output: %s\n", outputPath)
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Mode: %s\n", mode)

	templatePathAbs, err := absPath(templatePath)
	if err != nil {
		return err
	}
	outputPathAbs, err := absPath(outputPath)
	if err != nil {
		return err
	}

	content, err := os.ReadFile(templatePathAbs)
	if err != nil {
		return fmt.Errorf("template file does not exist: %s", templatePathAbs)
	}

	vars := getConfigVars(mode, version)
	if dataPath := c.String("data"); dataPath != "" {
		overrides, err := config.LoadConfigVars(dataPath)
		if err != nil {
			return err
		}
		for key, value := range overrides {
			vars[key] = value
		}
	}

	if missing := config.MissingRequiredVars(string(content), vars); len(missing) > 0 {
		fmt.Printf("⚠️  Required values not set: %s\n", strings.Join(missing, ", "))
	}

	if err := config.GenerateConfigFromTemplate(templatePathAbs, outputPathAbs, vars); err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	fmt.Printf("✅ Configuration generated successfully: %s\n", outputPathAbs)
	return nil
}

// serverAction запускає web сервер
func serverAction(c *cli.Context) error {
	fmt.Printf("🚀 Starting VideoGen web server\n")
	fmt.Println(build.Current().Summary())

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	return config.StartServer(cfg)
}

// migrateAction застосовує або відкочує міграції
func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database == nil {
		return fmt.Errorf("migrations need a database block (profiles backend %q)", cfg.Profiles.Backend)
	}

	if c.Bool("rollback") {
		return config.RollbackMigrations(cfg)
	}
	return config.RunMigrations(cfg)
}

// versionAction показує інформацію про версію
func versionAction(c *cli.Context) error {
	details := build.Current()

	fmt.Println(details.Summary())
	fmt.Printf("Build Time: %s\n", details.BuildTime)

	return nil
}

// loadConfig читає конфігурацію з файлу або зі змінних оточення
func loadConfig(c *cli.Context) (*config.Config, error) {
	if c.Bool("from-env") {
		fmt.Printf("Config: environment (%s*)\n", config.EnvPrefix)
		cfg, err := config.LoadEnvConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	configPath := c.String("config")
	fmt.Printf("Config: %s\n", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s. Run 'configure' command first", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	workDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return filepath.Join(workDir, path), nil
}

// getConfigVars повертає мапу змінних для конфігурації
func getConfigVars(mode, version string) map[string]interface{} {
	vars := map[string]interface{}{
		"build_version": version,
		"environment":   environmentForMode(mode),
		"log_level":     getLogLevelForMode(mode),
	}

	// Сервер
	setVarFromEnv(vars, "server_host", "SERVER_HOST", "localhost")
	setVarFromEnv(vars, "server_port", "SERVER_PORT", 8080)
	setVarFromEnv(vars, "public_url", "PUBLIC_URL", "http://localhost:8080")

	// Supabase
	setVarFromEnv(vars, "auth_mode", "AUTH_MODE", "supabase")
	setVarFromEnv(vars, "supabase_url", "SUPABASE_URL", "")
	setVarFromEnv(vars, "supabase_anon_key", "SUPABASE_ANON_KEY", "")
	setVarFromEnv(vars, "jwt_secret", "SUPABASE_JWT_SECRET", "")
	setVarFromEnv(vars, "checkout_endpoint", "CHECKOUT_ENDPOINT", "")
	setVarFromEnv(vars, "telegram_bot_name", "TELEGRAM_BOT_NAME", "@YourBotName")

	// Сховища
	setVarFromEnv(vars, "profiles_backend", "PROFILES_BACKEND", "rest")
	setVarFromEnv(vars, "session_storage", "SESSION_STORAGE", "memory")
	setVarFromEnv(vars, "db_host", "DB_HOST", "localhost")
	setVarFromEnv(vars, "db_port", "DB_PORT", 5432)
	setVarFromEnv(vars, "db_name", "DB_NAME", "videogen")
	setVarFromEnv(vars, "db_user", "DB_USER", "videogen")
	setVarFromEnv(vars, "db_password", "DB_PASSWORD", "")
	setVarFromEnv(vars, "redis_host", "REDIS_HOST", "localhost")
	setVarFromEnv(vars, "redis_port", "REDIS_PORT", 6379)
	setVarFromEnv(vars, "redis_password", "REDIS_PASSWORD", "")

	// Безпека
	setVarFromEnv(vars, "cors_allowed_origins", "CORS_ALLOWED_ORIGINS", "http://localhost:8080")
	setVarFromEnv(vars, "session_secret", "SESSION_SECRET", "dev-session-secret-change-in-production")
	vars["session_secure"] = mode == "production"

	// Порожні значення без змінних оточення залишаємо шаблону
	for key, value := range vars {
		if s, ok := value.(string); ok && s == "" {
			delete(vars, key)
		}
	}

	return vars
}

// setVarFromEnv встановлює змінну з оточення або дефолтне значення
func setVarFromEnv(vars map[string]interface{}, key, envKey string, defaultValue interface{}) {
	if envValue := os.Getenv(envKey); envValue != "" {
		vars[key] = envValue
	} else {
		vars[key] = defaultValue
	}
}

// environmentForMode відображає режим генерації на environment сервера
func environmentForMode(mode string) string {
	switch mode {
	case "production", "staging":
		return mode
	default:
		return "development"
	}
}

// getLogLevelForMode повертає рівень логування для режиму
func getLogLevelForMode(mode string) string {
	switch mode {
	case "production":
		return "warn"
	case "staging":
		return "info"
	default:
		return "debug"
	}
}
