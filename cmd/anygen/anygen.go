// Package anygencmder is the root of the anygen command tree.
package anygencmder

import (
	"github.com/spf13/cobra"

	admincmder "github.com/rshanygen/anygen/cmd/anygen/admin"
	authcmder "github.com/rshanygen/anygen/cmd/anygen/auth"
	chatcmder "github.com/rshanygen/anygen/cmd/anygen/chat"
	configcmder "github.com/rshanygen/anygen/cmd/anygen/config"
	kbcmder "github.com/rshanygen/anygen/cmd/anygen/kb"
	servecmder "github.com/rshanygen/anygen/cmd/anygen/serve"
	sessionscmder "github.com/rshanygen/anygen/cmd/anygen/sessions"
	settingscmder "github.com/rshanygen/anygen/cmd/anygen/settings"
	skillscmder "github.com/rshanygen/anygen/cmd/anygen/skills"
	versioncmder "github.com/rshanygen/anygen/cmd/version"
)

const anygenLongDesc string = `anygen is a terminal client for the AnyGen assistant gateway.

Chat with the assistant, manage sessions, skills and knowledge bases,
administer users, or run the development proxy:
  anygen auth login          Sign in through the identity provider
  anygen chat                Start an interactive chat
  anygen chat "question"     Ask a single question
  anygen serve               Run the dev proxy on :9300`

const anygenShortDesc string = "AnyGen assistant client"

func NewAnygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "anygen",
		Short:         anygenShortDesc,
		Long:          anygenLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .anygen/ config directory")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(skillscmder.NewSkillsCmd())
	cmd.AddCommand(kbcmder.NewKBCmd())
	cmd.AddCommand(admincmder.NewAdminCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(settingscmder.NewSettingsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
