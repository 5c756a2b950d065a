package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pesa/internal/api"
	"pesa/internal/checkout"
	"pesa/internal/payments"
	"pesa/internal/ratelimit"
	"pesa/internal/settlement"
)

type config struct {
	baseURL string
	token   string
	poll    pollConfig
	limiter limiterConfig
}

type pollConfig struct {
	interval time.Duration
	deadline time.Duration
}

type limiterConfig struct {
	checksPerMinute int
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	core := zapcore.NewCore(consoleEncoder, zapcore.NewMultiWriteSyncer(zapcore.AddSync(os.Stdout)), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

func loadConfig() config {
	cfg := config{
		baseURL: os.Getenv("API_BASE_URL"),
		token:   os.Getenv("API_TOKEN"),
		poll: pollConfig{
			interval: settlement.DefaultInterval,
			deadline: settlement.DefaultDeadline,
		},
		limiter: limiterConfig{checksPerMinute: 30},
	}
	if cfg.baseURL == "" {
		log.Fatal("API_BASE_URL is required")
	}

	if val, exists := os.LookupEnv("POLL_INTERVAL_SECONDS"); exists {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			cfg.poll.interval = time.Duration(parsed) * time.Second
		} else {
			fmt.Println("Invalid POLL_INTERVAL_SECONDS, using default")
		}
	}
	if val, exists := os.LookupEnv("POLL_DEADLINE_SECONDS"); exists {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			cfg.poll.deadline = time.Duration(parsed) * time.Second
		} else {
			fmt.Println("Invalid POLL_DEADLINE_SECONDS, using default")
		}
	}
	if val, exists := os.LookupEnv("STATUS_CHECKS_PER_MINUTE"); exists {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			cfg.limiter.checksPerMinute = parsed
		}
	}

	return cfg
}

func main() {
	// .env is optional for the CLI; real deployments set the environment.
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using process environment")
	}

	var (
		channel  = flag.String("channel", "mobile_money", "settlement channel: mobile_money, card or sdk")
		action   = flag.String("action", "deposit", "deposit or withdraw (mobile money only)")
		amount   = flag.String("amount", "", "amount, e.g. 10000")
		currency = flag.String("currency", "UGX", "ISO currency code")
		network  = flag.String("network", "MTN", "mobile money network: MTN or AIRTEL")
		phone    = flag.String("phone", "", "mobile money phone number")
	)
	flag.Parse()

	cfg := loadConfig()

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	creds := api.NewMemoryCredentials(cfg.token)
	if cfg.token != "" {
		if exp, err := api.TokenExpiry(cfg.token); err == nil && time.Now().After(exp) {
			logger.Warn("stored token is already expired; requests will be rejected")
		}
	}

	client := api.NewClient(cfg.baseURL, creds, logger)
	service := payments.NewService(client, creds, logger)
	limiter := ratelimit.NewFixedWindowLimiter(cfg.limiter.checksPerMinute, time.Minute)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *channel {
	case "mobile_money":
		runMobileMoney(ctx, cfg, logger, service, limiter, *action, *amount, *currency, *network, *phone)
	case "card":
		runCard(ctx, cfg, logger, service, limiter, *amount, *currency)
	case "sdk":
		runSDK(ctx, logger, service, *amount, *currency)
	default:
		logger.Fatalf("unknown channel %q", *channel)
	}
}

func runMobileMoney(ctx context.Context, cfg config, logger *zap.SugaredLogger, service *payments.Service, limiter *ratelimit.FixedWindowLimiter, action, amount, currency, network, phone string) {
	var init *payments.Initiation
	var err error
	if action == "withdraw" {
		init, err = service.WithdrawMobileMoney(ctx, amount, currency, payments.Network(network), phone)
	} else {
		init, err = service.InitiateMobileMoney(ctx, amount, currency, payments.Network(network), phone)
	}
	if err != nil {
		fatalAPIError(logger, err)
	}

	logger.Infof("check your phone for the %s prompt", init.Network)
	waitForSettlement(ctx, cfg, logger, service, limiter, init)
}

func runCard(ctx context.Context, cfg config, logger *zap.SugaredLogger, service *payments.Service, limiter *ratelimit.FixedWindowLimiter, amount, currency string) {
	card := readCardDetails()

	init, err := service.InitiateCard(ctx, amount, currency, card)
	if err != nil {
		fatalAPIError(logger, err)
	}

	// Desktop stand-in for the app's web view: a loopback listener catches the
	// provider redirect while settlement is confirmed by polling, same as the
	// app does.
	listener := checkout.NewListener(logger)
	returnURL, err := listener.Start()
	if err != nil {
		logger.Fatalf("start return listener: %v", err)
	}
	defer listener.Shutdown(context.Background())

	fmt.Println("Open this URL in your browser to complete the charge:")
	fmt.Println("  " + init.PaymentURL)
	fmt.Println("Local return URL (for sandbox redirects): " + returnURL)

	go func() {
		if ret, ok := <-listener.Returns(); ok {
			logger.Infow("provider redirect received", "status", ret.Status, "reference", ret.Reference)
		}
	}()

	waitForSettlement(ctx, cfg, logger, service, limiter, init)
}

func runSDK(ctx context.Context, logger *zap.SugaredLogger, service *payments.Service, amount, currency string) {
	init, err := service.InitiateSDK(ctx, amount, currency)
	if err != nil {
		fatalAPIError(logger, err)
	}

	fmt.Println("SDK bootstrap parameters (handed to the provider SDK on device):")
	fmt.Printf("  tx_ref:     %s\n", init.SDK.TxRef)
	fmt.Printf("  public_key: %s\n", init.SDK.PublicKey)
	fmt.Printf("  customer:   %s <%s>\n", init.SDK.Customer.Name, init.SDK.Customer.Email)

	session := settlement.NewCallbackSession(ctx, init, service, logger)

	// There is no native SDK on a terminal, so stdin stands in for the
	// provider adapter: type what the SDK would report.
	fmt.Println("Enter the provider result: 'success <ref>', 'failed <ref>' or 'cancel'")
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			session.OnCancel()
			return
		}
		fields := strings.Fields(scanner.Text())
		switch {
		case len(fields) == 2 && fields[0] == "success":
			session.OnSuccess(fields[1])
		case len(fields) == 2 && fields[0] == "failed":
			session.OnFailure(fields[1])
		default:
			session.OnCancel()
		}
	}()

	outcome, ok := <-session.Outcomes()
	if !ok {
		logger.Info("payment dismissed before completion")
		return
	}
	printOutcome(logger, outcome)
}

func waitForSettlement(ctx context.Context, cfg config, logger *zap.SugaredLogger, service *payments.Service, limiter *ratelimit.FixedWindowLimiter, init *payments.Initiation) {
	poller := settlement.NewPoller(init, service, limiter, logger, settlement.Config{
		Interval: cfg.poll.interval,
		Deadline: cfg.poll.deadline,
	})
	go poller.Run(ctx)

	outcome, ok := <-poller.Outcomes()
	if !ok {
		logger.Info("payment dismissed before completion")
		return
	}
	printOutcome(logger, outcome)
}

func printOutcome(logger *zap.SugaredLogger, outcome settlement.Outcome) {
	switch outcome.Kind {
	case settlement.KindSucceeded:
		fmt.Printf("✅ Payment of %s %s confirmed (reference %s)\n", outcome.Status.Amount, outcome.Status.Currency, outcome.Reference)
	case settlement.KindFailed:
		msg := "The payment failed."
		if outcome.Status != nil && outcome.Status.Error != nil {
			msg = outcome.Status.Error.Message
		}
		fmt.Println("❌ " + msg)
		if outcome.CanRetry() {
			fmt.Println("You can try again; a new attempt gets a fresh reference.")
		} else {
			fmt.Println("This payment cannot be retried.")
		}
	case settlement.KindCancelled:
		fmt.Println("Payment cancelled before completion.")
	default:
		fmt.Println("Payment is still pending. Check your transaction history later.")
	}
}

func readCardDetails() payments.CardDetails {
	scanner := bufio.NewScanner(os.Stdin)
	read := func(prompt string) string {
		fmt.Print(prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}
	return payments.CardDetails{
		Number:      read("Card number: "),
		CVV:         read("CVV: "),
		ExpiryMonth: read("Expiry month (MM): "),
		ExpiryYear:  read("Expiry year (YY): "),
	}
}

func fatalAPIError(logger *zap.SugaredLogger, err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		logger.Fatalw("request failed", "code", apiErr.Code, "message", apiErr.UserMessage())
	}
	logger.Fatal(err)
}
