// Command walkthrough runs the whole credential lifecycle against the
// in-memory registry and prints each step. Useful for a quick smoke
// check without a browser or a database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/secureauth/secureauth/pkg/device"
	"github.com/secureauth/secureauth/pkg/loginflow"
	"github.com/secureauth/secureauth/pkg/registry"
	"github.com/secureauth/secureauth/pkg/sessions"
	"github.com/secureauth/secureauth/pkg/twofa"
)

func main() {
	ctx := context.Background()
	repo := registry.NewInMemoryRegistryRepository()
	flowService := loginflow.NewFlowService(repo, sessions.NewSessionService(), nil)

	if err := run(ctx, flowService); err != nil {
		slog.Error("walkthrough failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, flowService *loginflow.FlowService) error {
	fmt.Println("== admin creates an account ==")
	if err := flowService.CreateAccount(ctx, "bob", "bob"); err != nil {
		return err
	}

	fmt.Println("== first login forces a password reset ==")
	sess := sessions.NewSession()
	result, err := flowService.Login(ctx, sess, "bob", "bob", "")
	if err != nil {
		return err
	}
	fmt.Printf("stage: %s\n", result.Stage)

	fmt.Println("== password reset ==")
	result, err = flowService.ResetPassword(ctx, "bob", "bob", "bob", "Valid123!", "Valid123!")
	if err != nil {
		return err
	}
	fmt.Printf("stage: %s\n", result.Stage)

	fmt.Println("== authenticator enrollment ==")
	provision, err := flowService.ProvisionTotp(ctx, "bob", device.FingerprintData{
		UserAgent:    "walkthrough/1.0",
		ScreenWidth:  1920,
		ScreenHeight: 1080,
	})
	if err != nil {
		return err
	}
	fmt.Printf("secret:    %s\n", provision.Secret)
	fmt.Printf("uri:       %s\n", provision.URI)
	fmt.Printf("device id: %s\n", provision.DeviceID)

	// What an authenticator app seeded with this secret would show
	// right now.
	if code, err := twofa.PreviewPasscode(provision.Secret); err == nil {
		fmt.Printf("current authenticator code: %s\n", code)
	}

	result, err = flowService.ConfirmTotp(ctx, "bob", "123456", provision.DeviceID)
	if err != nil {
		return err
	}
	fmt.Printf("stage: %s\n", result.Stage)

	fmt.Println("== second login runs the otp challenge ==")
	sess = sessions.NewSession()
	result, err = flowService.Login(ctx, sess, "bob", "Valid123!", "")
	if err != nil {
		return err
	}
	fmt.Printf("stage: %s\n", result.Stage)

	result, err = flowService.ChallengeOtp(ctx, sess, "654321")
	if err != nil {
		return err
	}
	fmt.Printf("stage: %s (user %s)\n", result.Stage, result.Username)

	fmt.Println("== admin overview ==")
	entries, err := flowService.RegistrySnapshot(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Printf("%-10s profile=%v totp=%s device=%s\n",
			entry.Username, entry.HasProfile, entry.TotpEnabled, entry.DeviceID)
	}

	flowService.Logout(sess)
	fmt.Println("== done ==")
	return nil
}
