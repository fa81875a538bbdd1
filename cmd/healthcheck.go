package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const defaultWebPort = 8080

type healthcheckParams struct {
	fx.In

	Config *viper.Viper `optional:"true"`
}

// HealthcheckCommand probes /healthz of a running auikitd. The default URL
// follows web.port of the loaded config.
type HealthcheckCommand struct {
	port int
}

func NewHealthcheckCommand(p healthcheckParams) *HealthcheckCommand {
	port := defaultWebPort
	if p.Config != nil && p.Config.IsSet("web.port") {
		port = p.Config.GetInt("web.port")
	}
	return &HealthcheckCommand{port: port}
}

func (s *HealthcheckCommand) DefaultURL() string {
	return "http://127.0.0.1:" + strconv.Itoa(s.port) + "/healthz"
}

func (s *HealthcheckCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:           "healthcheck",
		Short:         "Probe the HTTP API and exit non-zero when unhealthy",
		SilenceErrors: true,
		RunE:          s.Run,
	}
	c.Flags().String("url", s.DefaultURL(), "health endpoint URL")
	c.Flags().Duration("timeout", 3*time.Second, "request timeout")
	return c
}

type healthBody struct {
	Status string `json:"status"`
	Build  string `json:"build"`
}

func (s *HealthcheckCommand) Run(cmd *cobra.Command, args []string) error {
	url, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}

	resp, err := client.New().SetTimeout(timeout).Get(url, client.Config{Ctx: cmd.Context()})
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Close()

	if resp.StatusCode() < fiber.StatusOK || resp.StatusCode() >= fiber.StatusMultipleChoices {
		return fmt.Errorf("unhealthy status: %d", resp.StatusCode())
	}

	var body healthBody
	if err := resp.JSON(&body); err != nil || body.Status == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", body.Status, body.Build)
	return err
}
