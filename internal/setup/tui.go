package setup

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/quantlab/config"
)

// GeneratedConfigPath file written by the wizard.
const GeneratedConfigPath = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers raw wizard input before conversion.
type answers struct {
	addr         string
	seed         string
	days         string
	filterMode   string
	frontierSize string
	midPrice     string
	tickInterval string
	apiURL       string
	apiKey       string
	model        string
}

func defaultAnswers(c *config.Config) answers {
	return answers{
		addr:         c.Addr,
		seed:         strconv.FormatUint(c.Seed, 10),
		days:         strconv.Itoa(c.Series.Days),
		filterMode:   c.Series.FilterMode,
		frontierSize: strconv.Itoa(c.Frontier.Count),
		midPrice:     strconv.FormatFloat(c.OrderBook.MidPrice, 'f', -1, 64),
		tickInterval: c.OrderBook.TickInterval.String(),
		apiURL:       c.Tutor.APIURL,
		apiKey:       c.Tutor.APIKey,
		model:        c.Tutor.Model,
	}
}

func step(title string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("QUANTLAB CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(title))
}

// RunTUI launches the terminal configuration wizard and returns the path of
// the written config file.
func RunTUI() (string, error) {
	base, err := config.Default()
	if err != nil {
		return "", err
	}
	a := defaultAnswers(base)
	var confirm bool

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("QUANTLAB CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Synthetic markets for quant lessons.\n"))

	fmt.Println(stepStyle.Render("STEP 1: SERVER"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Listen address").
				Description("host:port, e.g. :8080").
				Value(&a.addr).
				Validate(validateAddr),
			huh.NewInput().
				Title("Random seed").
				Description("0 picks a seed from the clock").
				Value(&a.seed).
				Validate(validateSeed),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 2: MARKET DATA")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Series length (days)").
				Value(&a.days).
				Validate(validatePositiveInt),
			huh.NewSelect[string]().
				Title("Kalman covariance").
				Options(
					huh.NewOption("Frozen (classic lesson chart)", "frozen"),
					huh.NewOption("Adaptive (textbook update)", "adaptive"),
				).
				Value(&a.filterMode),
			huh.NewInput().
				Title("Frontier portfolios").
				Value(&a.frontierSize).
				Validate(validatePositiveInt),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 3: ORDER BOOK")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Starting mid price").
				Value(&a.midPrice).
				Validate(validatePrice),
			huh.NewInput().
				Title("Tick interval").
				Description("Duration string (e.g. 800ms, 1s)").
				Value(&a.tickInterval).
				Validate(validateInterval),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 4: AI TUTOR")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("LLM API URL").
				Description("OpenAI-compatible chat completions endpoint").
				Value(&a.apiURL),
			huh.NewInput().
				Title("LLM API Key").
				Description("Leave empty to use " + config.EnvTutorAPIKey).
				Value(&a.apiKey).
				EchoMode(huh.EchoModePassword),
			huh.NewInput().
				Title("Model Name").
				Value(&a.model),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Address: %s\nSeed: %s\nDays: %s (%s filter)\nFrontier: %s portfolios\nBook: mid %s every %s\nModel: %s\n",
		a.addr, a.seed, a.days, a.filterMode, a.frontierSize, a.midPrice, a.tickInterval, a.model,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", errors.New("setup cancelled by user")
	}

	cfg, err := a.apply(base)
	if err != nil {
		return "", err
	}
	if err := cfg.Write(GeneratedConfigPath); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting server...", GeneratedConfigPath)))
	time.Sleep(1500 * time.Millisecond)
	return GeneratedConfigPath, nil
}

// apply converts the answers onto a copy of base and validates the result.
func (a answers) apply(base *config.Config) (*config.Config, error) {
	cfg := *base
	cfg.Addr = strings.TrimSpace(a.addr)

	var err error
	if cfg.Seed, err = strconv.ParseUint(strings.TrimSpace(a.seed), 10, 64); err != nil {
		return nil, errors.Wrap(err, "seed")
	}
	if cfg.Series.Days, err = strconv.Atoi(strings.TrimSpace(a.days)); err != nil {
		return nil, errors.Wrap(err, "days")
	}
	cfg.Series.FilterMode = a.filterMode
	if cfg.Frontier.Count, err = strconv.Atoi(strings.TrimSpace(a.frontierSize)); err != nil {
		return nil, errors.Wrap(err, "frontier size")
	}
	if cfg.OrderBook.MidPrice, err = strconv.ParseFloat(strings.TrimSpace(a.midPrice), 64); err != nil {
		return nil, errors.Wrap(err, "mid price")
	}
	if cfg.OrderBook.TickInterval, err = time.ParseDuration(strings.TrimSpace(a.tickInterval)); err != nil {
		return nil, errors.Wrap(err, "tick interval")
	}
	cfg.Tutor.APIURL = strings.TrimSpace(a.apiURL)
	cfg.Tutor.APIKey = strings.TrimSpace(a.apiKey)
	cfg.Tutor.Model = strings.TrimSpace(a.model)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

func validateAddr(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("address cannot be empty")
	}
	if !strings.Contains(s, ":") {
		return errors.New("invalid format: must be host:port (e.g. :8080)")
	}
	return nil
}

func validateSeed(s string) error {
	if _, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil {
		return errors.New("must be a non-negative integer")
	}
	return nil
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a whole number")
	}
	if n < 1 {
		return errors.New("must be at least 1")
	}
	return nil
}

func validatePrice(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return errors.New("must be a valid number")
	}
	if v <= 0 {
		return errors.New("must be greater than 0")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if d < 10*time.Millisecond {
		return errors.New("must be at least 10ms")
	}
	return nil
}
