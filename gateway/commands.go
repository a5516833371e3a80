package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/model"
	"github.com/Haga4000/Regelebot/storage"
	"github.com/Haga4000/Regelebot/tools"
)

// MovieFinder looks a film up in the catalog.
type MovieFinder interface {
	Search(ctx context.Context, query string, year int) (*club.MovieDetails, error)
}

// PollService runs club votes, including those cast on native WhatsApp polls.
type PollService interface {
	tools.PollService
	VoteByLabel(ctx context.Context, waMessageID string, labels []string, member string) (string, error)
	SetWAMessageID(ctx context.Context, pollID, waMessageID string) error
}

// Reply is what the bot posts back to the group.
type Reply struct {
	Text string
	Poll *PollPayload
}

// PollPayload asks the WhatsApp gateway to post a native poll.
type PollPayload struct {
	PollID   string   `json:"poll_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type commandRequest struct {
	args    string
	sender  string
	groupID string
}

type commandFunc func(ctx context.Context, req commandRequest) (Reply, error)

// Commands answers slash commands without going through the model.
type Commands struct {
	botName       string
	windowSize    int
	movies        MovieFinder
	stats         tools.StatsService
	polls         PollService
	conversations storage.ConversationStorage
	logger        *slog.Logger
	handlers      map[string]commandFunc
}

// NewCommands binds the command table to the club services. windowSize
// is how many recent messages /flush deletes.
func NewCommands(botName string, windowSize int, movies MovieFinder, stats tools.StatsService,
	polls PollService, conversations storage.ConversationStorage, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Commands{
		botName:       botName,
		windowSize:    windowSize,
		movies:        movies,
		stats:         stats,
		polls:         polls,
		conversations: conversations,
		logger:        logger,
	}
	c.handlers = map[string]commandFunc{
		"/aide":       c.help,
		"/film":       c.film,
		"/vu":         c.watched,
		"/noter":      c.rate,
		"/historique": c.history,
		"/stats":      c.clubStats,
		"/sondage":    c.createPoll,
		"/vote":       c.vote,
		"/resultats":  c.results,
		"/flush":      c.flush,
	}
	return c
}

// Handle runs one command line. Unknown commands and failures become
// member-facing replies.
func (c *Commands) Handle(ctx context.Context, message, sender, groupID string) Reply {
	name, args, _ := strings.Cut(strings.TrimSpace(message), " ")
	name = strings.ToLower(name)

	handler, ok := c.handlers[name]
	if !ok {
		return Reply{Text: fmt.Sprintf("Commande inconnue : %s\nTape /aide pour voir les commandes disponibles.", name)}
	}

	if sender == "" {
		sender = model.DefaultSenderName
	}
	reply, err := handler(ctx, commandRequest{args: strings.TrimSpace(args), sender: sender, groupID: groupID})
	if err != nil {
		c.logger.Error("command failed", "command", name, "error", err)
		return Reply{Text: fmt.Sprintf("Erreur lors de l'execution de %s. Reessaie !", name)}
	}
	return reply
}

// Names returns the supported commands.
func (c *Commands) Names() []string {
	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}
	return names
}

func text(s string) (Reply, error) {
	return Reply{Text: s}, nil
}

// domainReply turns a domain failure into a reply with prefix, and
// passes any other error through.
func domainReply(prefix string, err error) (Reply, error) {
	if msg, ok := club.UserMessage(err); ok {
		return text(prefix + msg)
	}
	return Reply{}, err
}

func (c *Commands) help(context.Context, commandRequest) (Reply, error) {
	return text("Pose-moi n'importe quelle question ou lance une conversation" +
		" en taguant *@" + c.botName + "* dans le groupe !\n\n" +
		"*Commandes rapides :*\n" +
		"  /film [titre] — Fiche rapide d'un film\n" +
		"  /vu [film] — Marquer un film comme vu\n" +
		"  /noter [film] [1-5] — Noter un film\n" +
		"  /historique — Derniers films vus\n" +
		"  /stats — Statistiques du club\n" +
		"  /sondage Question ? | Option1 | Option2 — Creer un sondage\n" +
		"  /vote [numero] — Voter sur le sondage en cours\n" +
		"  /resultats — Voir les resultats du sondage\n" +
		"  /flush — Effacer la memoire recente du bot\n" +
		"  /aide — Cette aide")
}

func (c *Commands) film(ctx context.Context, req commandRequest) (Reply, error) {
	if req.args == "" {
		return text("Usage : /film [titre du film]")
	}
	movie, err := c.movies.Search(ctx, req.args, 0)
	if err != nil {
		return domainReply("❌ ", err)
	}

	lines := []string{fmt.Sprintf("🎬 *%s*", movie.Title)}
	if movie.OriginalTitle != "" && movie.OriginalTitle != movie.Title {
		lines = append(lines, fmt.Sprintf("   _%s_", movie.OriginalTitle))
	}
	lines = append(lines,
		fmt.Sprintf("📅 %s | ⏱ %s min", orUnknown(movie.Year), orUnknown(positive(movie.Runtime))),
		"🎭 "+strings.Join(movie.Genres, ", "),
		"🎬 "+firstOr(movie.Director, "Inconnu"),
		fmt.Sprintf("🌟 %.1f/10 (%d votes)", movie.VoteAverage, movie.VoteCount),
	)
	if len(movie.Cast) > 0 {
		lines = append(lines, "👥 "+strings.Join(movie.Cast, ", "))
	}
	lines = append(lines, "", firstOr(movie.Overview, "Pas de synopsis disponible."))
	if len(movie.Streaming) > 0 {
		lines = append(lines, "\n📺 Streaming : "+strings.Join(movie.Streaming, ", "))
	}
	if movie.Trailer != "" {
		lines = append(lines, "🎥 Trailer : "+movie.Trailer)
	}
	return text(strings.Join(lines, "\n"))
}

func (c *Commands) watched(ctx context.Context, req commandRequest) (Reply, error) {
	if req.args == "" {
		return text("Usage : /vu [titre du film]")
	}
	msg, err := c.stats.MarkWatched(ctx, req.args)
	if err != nil {
		return domainReply("❌ ", err)
	}
	return text("✅ " + msg)
}

func (c *Commands) rate(ctx context.Context, req commandRequest) (Reply, error) {
	idx := strings.LastIndexAny(req.args, " \t")
	if idx < 0 {
		return text("Usage : /noter [titre du film] [1-5]")
	}
	title := strings.TrimSpace(req.args[:idx])
	score, err := strconv.Atoi(req.args[idx+1:])
	if err != nil {
		return text("La note doit etre un nombre entre 1 et 5.")
	}
	if score < 1 || score > 5 {
		return text("La note doit etre entre 1 et 5.")
	}

	msg, err := c.stats.Rate(ctx, title, score, req.sender)
	if err != nil {
		return domainReply("❌ ", err)
	}
	return text("⭐ " + msg)
}

func (c *Commands) history(ctx context.Context, _ commandRequest) (Reply, error) {
	items, err := c.stats.History(ctx, club.DefaultHistoryLimit)
	if err != nil {
		return Reply{}, err
	}
	if len(items) == 0 {
		return text("📽 Aucun film dans l'historique. Utilisez /vu pour en ajouter !")
	}

	lines := []string{"📽 *Derniers films vus :*", ""}
	for i, item := range items {
		rating := "pas note"
		if item.AvgRating != nil && *item.AvgRating > 0 {
			rating = fmt.Sprintf("%.1f/5", *item.AvgRating)
		}
		title := item.Title
		if item.Year > 0 {
			title = fmt.Sprintf("%s (%d)", item.Title, item.Year)
		}
		lines = append(lines, fmt.Sprintf("%d. %s — %s", i+1, title, rating))
	}
	return text(strings.Join(lines, "\n"))
}

func (c *Commands) clubStats(ctx context.Context, _ commandRequest) (Reply, error) {
	stats, err := c.stats.Stats(ctx)
	if err != nil {
		return Reply{}, err
	}
	return text(strings.Join([]string{
		"📊 *Statistiques du club :*",
		"",
		fmt.Sprintf("🎬 Films vus : %d", stats.TotalMovies),
		fmt.Sprintf("⭐ Note moyenne : %.1f/5", stats.AvgRating),
		"🎭 Genres preferes : " + strings.Join(stats.TopGenres, ", "),
	}, "\n"))
}

func (c *Commands) createPoll(ctx context.Context, req commandRequest) (Reply, error) {
	if !strings.Contains(req.args, "|") {
		return text("Usage : /sondage Question ? | Option 1 | Option 2 | ...\n" +
			"Exemple : /sondage Quel film ce samedi ? | Inception | Parasite | Interstellar")
	}

	parts := strings.Split(req.args, "|")
	question := strings.TrimSpace(parts[0])
	var options []string
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			options = append(options, p)
		}
	}
	if len(options) < 2 {
		return text("Il faut au moins 2 options pour creer un sondage.")
	}

	poll, err := c.polls.Create(ctx, question, options, req.sender)
	if err != nil {
		return domainReply("", err)
	}

	lines := []string{fmt.Sprintf("*%s*\n", poll.Question)}
	for _, opt := range poll.Options {
		lines = append(lines, fmt.Sprintf("  %s. %s", opt.ID, opt.Label))
	}
	last := poll.Options[len(poll.Options)-1].ID
	lines = append(lines,
		"\nPour voter : /vote "+last,
		fmt.Sprintf("ID du sondage : %s...", shortID(poll.ID)),
	)
	return Reply{
		Text: strings.Join(lines, "\n"),
		Poll: &PollPayload{PollID: poll.ID, Question: poll.Question, Options: poll.Labels()},
	}, nil
}

func (c *Commands) vote(ctx context.Context, req commandRequest) (Reply, error) {
	const usage = "Usage : /vote <numero>\nExemple : /vote 2"
	fields := strings.Fields(req.args)
	if len(fields) != 1 || !isDigits(fields[0]) {
		return text(usage)
	}

	latest, err := c.polls.Results(ctx, "")
	if err != nil {
		if _, ok := club.UserMessage(err); ok {
			return text("Aucun sondage en cours. Cree-en un avec /sondage")
		}
		return Reply{}, err
	}

	msg, err := c.polls.Vote(ctx, latest.PollID, fields[0], req.sender)
	if err != nil {
		return domainReply("", err)
	}
	return text(msg)
}

func (c *Commands) results(ctx context.Context, _ commandRequest) (Reply, error) {
	res, err := c.polls.Results(ctx, "")
	if err != nil {
		return domainReply("", err)
	}

	status := "En cours"
	if res.IsClosed {
		status = "CLOS"
	}
	lines := []string{fmt.Sprintf("*%s* (%s)\n", res.Question, status)}
	for _, item := range res.Results {
		lines = append(lines, fmt.Sprintf("  %s. %s — %d vote(s) %s",
			item.OptionID, item.Label, item.Votes, strings.Repeat("█", item.Votes)))
	}
	lines = append(lines, fmt.Sprintf("\nTotal : %d vote(s)", res.TotalVotes))
	return text(strings.Join(lines, "\n"))
}

func (c *Commands) flush(ctx context.Context, req commandRequest) (Reply, error) {
	if req.groupID == "" {
		return text("Impossible d'effacer la memoire : groupe non identifie.")
	}
	deleted, err := c.conversations.ClearRecent(ctx, req.groupID, c.windowSize)
	if err != nil {
		return Reply{}, err
	}
	if deleted == 0 {
		return text("Aucun message recent a effacer.")
	}
	return text(fmt.Sprintf("Memoire recente effacee (%d messages supprimes). On repart a zero !", deleted))
}

func orUnknown(s string) string {
	return firstOr(s, "?")
}

func firstOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
