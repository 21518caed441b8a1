package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/inhouse-ladder/internal/balance"
	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/metrics"
	"github.com/mauv0809/inhouse-ladder/internal/notifier"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

var _ notifier.Notifier = &Notifier{}

var sideNames = [2]string{"Radiant", "Dire"}

// UnderdogMarker flags the side expected to lose.
const UnderdogMarker = "↡"

// Notifier handles sending announcements to Slack.
type Notifier struct {
	api         slackClient
	channelID   string
	metrics     metrics.Metrics
	waitingMins int
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, waitingMins int, metrics metrics.Metrics) *Notifier {
	return NewNotifierWithAPI(slack.New(token), channelID, waitingMins, metrics)
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, waitingMins int, metrics metrics.Metrics) *Notifier {
	return &Notifier{
		api:         api,
		channelID:   channelID,
		metrics:     metrics,
		waitingMins: waitingMins,
	}
}

func (s *Notifier) sendMessage(message slack.Message, dryRun bool) (string, string, error) {
	if dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", s.channelID, "message", string(jsonMsg))
		return "dry-run-ts", "dry-run-thread-ts", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(
		ctx,
		s.channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		s.metrics.IncNotifFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncNotifSent()
	log.Info("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return channelID, timestamp, nil
}

func (s *Notifier) SendQueueBalanced(view queue.QueueView, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatQueueBalanced(view), dryRun)
	return err
}

func (s *Notifier) SendMatchRecorded(m *match.Match, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatMatchRecorded(m), dryRun)
	return err
}

func (s *Notifier) SendQueues(views []queue.QueueView, dryRun bool) error {
	_, _, err := s.sendMessage(s.formatQueues(views, false), dryRun)
	return err
}

// FormatQueuesResponse formats the active queues for an API response.
func (s *Notifier) FormatQueuesResponse(views []queue.QueueView, verbose bool) (any, error) {
	return s.formatQueues(views, verbose), nil
}

// FormatLeaderboardResponse formats a leaderboard page for an API response.
func (s *Notifier) FormatLeaderboardResponse(standings []roster.Standing) (any, error) {
	return s.formatLeaderboard(standings), nil
}

func plain(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject("plain_text", text, true, false)
}

func section(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(plain(text), nil, nil)
}

// teamTitle renders "Radiant (avg 3100)" and appends the underdog marker
// to the trailing side.
func teamTitle(side int, team balance.Team, underdog int) string {
	title := fmt.Sprintf("%s (avg %d)", sideNames[side], team.AvgMMR)
	if side == underdog {
		title += " " + UnderdogMarker
	}
	return title
}

func teamLines(team balance.Team, verbose bool) string {
	lines := make([]string, 0, len(team.Players))
	for _, e := range team.Players {
		line := "• " + e.Name
		if e.Role != "" {
			line += " [" + e.Role + "]"
		}
		if verbose {
			line += fmt.Sprintf(" (%d)", e.MMR)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// formatQueueBalanced creates the announcement for a queue that just filled up using Block Kit.
func (s *Notifier) formatQueueBalanced(view queue.QueueView) slack.Message {
	blocks := []slack.Block{
		slack.NewHeaderBlock(plain(fmt.Sprintf("Queue #%d is full!", view.Queue.ID))),
	}
	if view.Balance == nil {
		blocks = append(blocks, section("No balance attached."))
		return slack.NewBlockMessage(blocks...)
	}

	fields := make([]*slack.TextBlockObject, 0, 2)
	for side, team := range view.Balance.Teams {
		fields = append(fields, plain(teamTitle(side, team, view.Underdog)+"\n"+teamLines(team, false)))
	}
	blocks = append(blocks, slack.NewSectionBlock(plain(view.Channel.Name), fields, nil))

	footer := fmt.Sprintf("Rating difference: %d", view.Balance.MMRDiffRounded())
	if s.waitingMins > 0 {
		footer += fmt.Sprintf(" | Join the lobby within %d minutes", s.waitingMins)
	}
	blocks = append(blocks, slack.NewContextBlock("", plain(footer)))
	return slack.NewBlockMessage(blocks...)
}

// formatMatchRecorded creates the result message for a recorded match.
func (s *Notifier) formatMatchRecorded(m *match.Match) slack.Message {
	blocks := []slack.Block{
		slack.NewHeaderBlock(plain(fmt.Sprintf("%s won!", sideNames[m.Winner]))),
	}
	fields := make([]*slack.TextBlockObject, 0, 2)
	for side, team := range m.Teams {
		lines := make([]string, 0, len(team))
		for _, mp := range team {
			lines = append(lines, fmt.Sprintf("• %s %+d", mp.Name, mp.MMRChange))
		}
		fields = append(fields, plain(sideNames[side]+"\n"+strings.Join(lines, "\n")))
	}
	blocks = append(blocks, slack.NewSectionBlock(plain(fmt.Sprintf("Season %d", m.Season)), fields, nil))

	if m.QueueID != nil {
		blocks = append(blocks, slack.NewContextBlock("", plain(fmt.Sprintf("Queue #%d | Match %s", *m.QueueID, m.ID))))
	}
	return slack.NewBlockMessage(blocks...)
}

// formatQueues lists every active queue. Verbose adds ladder ratings.
func (s *Notifier) formatQueues(views []queue.QueueView, verbose bool) slack.Message {
	blocks := []slack.Block{slack.NewHeaderBlock(plain("Active queues"))}
	if len(views) == 0 {
		blocks = append(blocks, section("No one is queueing. Type join to start one!"))
		return slack.NewBlockMessage(blocks...)
	}

	for _, v := range views {
		title := fmt.Sprintf("%s #%d [%s] %d/%d, avg %d", v.Channel.Name, v.Queue.ID, v.Queue.State, len(v.Members), balance.QueueSize, v.AvgMMR)
		if v.Balance != nil {
			fields := make([]*slack.TextBlockObject, 0, 2)
			for side, team := range v.Balance.Teams {
				fields = append(fields, plain(teamTitle(side, team, v.Underdog)+"\n"+teamLines(team, verbose)))
			}
			blocks = append(blocks, slack.NewSectionBlock(plain(title), fields, nil))
			continue
		}

		names := make([]string, 0, len(v.Members))
		for _, m := range v.Members {
			name := m.Name
			if m.AFK {
				name += " (afk)"
			}
			if verbose {
				name += fmt.Sprintf(" (%d)", m.LadderMMR)
			}
			names = append(names, name)
		}
		blocks = append(blocks, section(title+"\n"+strings.Join(names, ", ")))
	}
	return slack.NewBlockMessage(blocks...)
}

// formatLeaderboard creates a Slack message to display a leaderboard page.
func (s *Notifier) formatLeaderboard(standings []roster.Standing) slack.Message {
	blocks := []slack.Block{slack.NewHeaderBlock(plain("🏆 Ladder 🏆"))}
	if len(standings) == 0 {
		blocks = append(blocks, section("No one has played this season yet. Go play some matches!"))
		return slack.NewBlockMessage(blocks...)
	}

	lines := make([]string, 0, len(standings))
	for _, st := range standings {
		var medal string
		switch st.Rank {
		case 1:
			medal = "🥇 "
		case 2:
			medal = "🥈 "
		case 3:
			medal = "🥉 "
		}
		lines = append(lines, fmt.Sprintf("%d. %s%s | %d pts | %d MMR | %dW %dL",
			st.Rank, medal, st.Player.Name, st.Score, st.Player.LadderMMR, st.Wins, st.Losses))
	}
	blocks = append(blocks, section(strings.Join(lines, "\n")))
	return slack.NewBlockMessage(blocks...)
}
