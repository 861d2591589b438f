package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"parley/internal/config"
	"parley/internal/rtc"
	"parley/internal/session"
	"parley/internal/ui"
)

var (
	flagServer   string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagCredURL  string
	flagNoVideo  bool
	flagAudio    bool
)

var callCmd = &cobra.Command{
	Use:     "call <room>",
	Aliases: []string{"c"},
	Short:   "Join a room and negotiate a peer connection",
	Long: `Connect to the signaling server, create or join the given room and
drive the negotiation with the peer that shares it. The first
participant to arrive becomes the initiator.

Examples:
  parley call abc
  parley call --server ws://signal.example.com:8081/ws abc
  parley call --turn turn:turn.example.com:3478 --turn-user u --turn-pass p abc`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{
			ServerURL:         flagServer,
			STUNServer:        flagSTUN,
			TURNServer:        flagTURN,
			TURNUser:          flagTURNUser,
			TURNPass:          flagTURNPass,
			TURNCredentialURL: flagCredURL,
		})
		if err != nil {
			return err
		}
		return runCall(cmd, cfg, args[0])
	},
}

func runCall(cmd *cobra.Command, cfg *config.Config, room string) error {
	if cfg.TURNServer != "" && (cfg.TURNUser == "" || cfg.TURNPass == "") {
		return fmt.Errorf("a static TURN server needs --turn-user and --turn-pass")
	}

	err := session.Run(cmd.Context(), session.Options{
		ServerURL:         cfg.ServerURL,
		Room:              room,
		ICEServers:        cfg.ICEServers(),
		TURNCredentialURL: cfg.TURNCredentialURL,
		Engine:            rtc.NewPionEngine(),
		Media:             rtc.NewStaticSource(),
		Constraints: rtc.Constraints{
			Video: !flagNoVideo,
			Audio: flagAudio,
		},
		OnState: func(s session.State) {
			ui.PrintState(s.String())
		},
		OnRole: func(r session.Role) {
			ui.RenderRoomBanner(room, r.String())
		},
	})

	switch {
	case err == nil:
		ui.PrintSuccess("call ended")
		return nil
	case errors.Is(err, session.ErrRoomFull):
		return fmt.Errorf("room %q already has two participants", room)
	default:
		return err
	}
}

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().StringVarP(&flagServer, "server", "s", "", "Signaling server websocket URL")
	callCmd.Flags().StringVar(&flagSTUN, "stun", "", "STUN server URL")
	callCmd.Flags().StringVar(&flagTURN, "turn", "", "Static TURN server URL")
	callCmd.Flags().StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	callCmd.Flags().StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	callCmd.Flags().StringVar(&flagCredURL, "turn-credential-url", "", "TURN credential endpoint")
	callCmd.Flags().BoolVar(&flagNoVideo, "no-video", false, "Do not offer video")
	callCmd.Flags().BoolVar(&flagAudio, "audio", false, "Offer audio")
}
