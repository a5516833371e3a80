package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/model"
	"github.com/Haga4000/Regelebot/storage"
)

type commandFixture struct {
	commands      *Commands
	movies        *fakeMovies
	stats         *fakeStats
	polls         *club.Polls
	conversations *storage.InMemoryStorage
}

func newCommandFixture(t *testing.T) *commandFixture {
	t.Helper()
	f := &commandFixture{
		movies:        &fakeMovies{},
		stats:         &fakeStats{},
		polls:         newTestPolls(t),
		conversations: storage.NewInMemoryStorage(),
	}
	f.commands = NewCommands("Regelebot", 3, f.movies, f.stats, f.polls, f.conversations, nil)
	return f
}

func (f *commandFixture) run(message string) Reply {
	return f.commands.Handle(context.Background(), message, "Alice", "group-1")
}

func TestUnknownCommand(t *testing.T) {
	f := newCommandFixture(t)
	reply := f.run("/Popcorn maintenant")
	assert.Equal(t, "Commande inconnue : /popcorn\nTape /aide pour voir les commandes disponibles.", reply.Text)
}

func TestCommandNamesAreCaseInsensitive(t *testing.T) {
	f := newCommandFixture(t)
	assert.True(t, strings.HasPrefix(f.run("/AIDE").Text, "Pose-moi n'importe quelle question"))
	assert.Contains(t, f.run("/aide").Text, "*@Regelebot*")
	assert.Len(t, f.commands.Names(), 10)
}

func TestCommandInternalErrorIsGeneric(t *testing.T) {
	f := newCommandFixture(t)
	f.stats.err = errBoom
	assert.Equal(t, "Erreur lors de l'execution de /stats. Reessaie !", f.run("/stats").Text)
}

func TestFilmCommand(t *testing.T) {
	f := newCommandFixture(t)
	assert.Equal(t, "Usage : /film [titre du film]", f.run("/film").Text)
	assert.Equal(t, "❌ Film 'Zzz' non trouve.", f.run("/film Zzz").Text)

	f.movies.details = &club.MovieDetails{
		Title:         "Le Voyage de Chihiro",
		OriginalTitle: "千と千尋の神隠し",
		Year:          "2001",
		Runtime:       125,
		Genres:        []string{"Animation", "Fantastique"},
		Director:      "Hayao Miyazaki",
		VoteAverage:   8.5,
		VoteCount:     16000,
		Cast:          []string{"Rumi Hiiragi"},
		Overview:      "Chihiro se retrouve dans un monde d'esprits.",
		Streaming:     []string{"Netflix"},
	}
	text := f.run("/film chihiro").Text
	assert.Equal(t, strings.Join([]string{
		"🎬 *Le Voyage de Chihiro*",
		"   _千と千尋の神隠し_",
		"📅 2001 | ⏱ 125 min",
		"🎭 Animation, Fantastique",
		"🎬 Hayao Miyazaki",
		"🌟 8.5/10 (16000 votes)",
		"👥 Rumi Hiiragi",
		"",
		"Chihiro se retrouve dans un monde d'esprits.",
		"\n📺 Streaming : Netflix",
	}, "\n"), text)
}

func TestWatchedAndRateCommands(t *testing.T) {
	f := newCommandFixture(t)
	assert.Equal(t, "Usage : /vu [titre du film]", f.run("/vu").Text)
	assert.Equal(t, "✅ 'Dune' ajoute a l'historique du club !", f.run("/vu Dune").Text)

	assert.Equal(t, "Usage : /noter [titre du film] [1-5]", f.run("/noter Dune").Text)
	assert.Equal(t, "La note doit etre un nombre entre 1 et 5.", f.run("/noter Dune super").Text)
	assert.Equal(t, "La note doit etre entre 1 et 5.", f.run("/noter Dune 6").Text)
	assert.Equal(t, "⭐ Alice a donne 4/5 a 'Blade Runner 2049'", f.run("/noter Blade Runner 2049 4").Text)
	assert.Equal(t, []string{"Alice:Blade Runner 2049:4"}, f.stats.rated)

	f.stats.err = &club.Error{Msg: "Film 'X' pas dans l'historique du club."}
	assert.Equal(t, "❌ Film 'X' pas dans l'historique du club.", f.run("/noter X 3").Text)
}

func TestHistoryCommand(t *testing.T) {
	f := newCommandFixture(t)
	assert.Equal(t, "📽 Aucun film dans l'historique. Utilisez /vu pour en ajouter !", f.run("/historique").Text)

	rating := 4.5
	f.stats.history = []club.HistoryItem{
		{Title: "Parasite", Year: 2019, AvgRating: &rating},
		{Title: "Dune", Year: 2021},
	}
	assert.Equal(t, "📽 *Derniers films vus :*\n\n1. Parasite (2019) — 4.5/5\n2. Dune (2021) — pas note",
		f.run("/historique").Text)
}

func TestStatsCommand(t *testing.T) {
	f := newCommandFixture(t)
	f.stats.stats = club.ClubStats{TotalMovies: 12, AvgRating: 3.75, TopGenres: []string{"Drame", "Thriller"}}
	assert.Equal(t, "📊 *Statistiques du club :*\n\n🎬 Films vus : 12\n⭐ Note moyenne : 3.8/5\n🎭 Genres preferes : Drame, Thriller",
		f.run("/stats").Text)
}

func TestPollCommands(t *testing.T) {
	f := newCommandFixture(t)

	assert.Equal(t, "Aucun sondage en cours. Cree-en un avec /sondage", f.run("/vote 1").Text)
	assert.Contains(t, f.run("/sondage Quel film ?").Text, "Usage : /sondage")
	assert.Equal(t, "Il faut au moins 2 options pour creer un sondage.", f.run("/sondage Quel film ? | Dune |  ").Text)

	created := f.run("/sondage Quel film samedi ? | Dune | Parasite | Alien")
	require.NotNil(t, created.Poll)
	assert.Equal(t, "Quel film samedi ?", created.Poll.Question)
	assert.Equal(t, []string{"Dune", "Parasite", "Alien"}, created.Poll.Options)
	assert.True(t, strings.HasPrefix(created.Text, "*Quel film samedi ?*\n\n  1. Dune\n  2. Parasite\n  3. Alien\n\nPour voter : /vote 3\n"))
	assert.Contains(t, created.Text, "ID du sondage : "+created.Poll.PollID[:8]+"...")

	assert.Equal(t, "Usage : /vote <numero>\nExemple : /vote 2", f.run("/vote deux").Text)
	assert.Equal(t, "Alice a vote pour : Parasite", f.run("/vote 2").Text)
	assert.Equal(t, "Alice a change son vote pour : Dune", f.run("/vote 1").Text)
	assert.Contains(t, f.run("/vote 9").Text, "Option invalide")

	results := f.run("/resultats").Text
	assert.True(t, strings.HasPrefix(results, "*Quel film samedi ?* (En cours)\n\n  1. Dune — 1 vote(s) █\n"))
	assert.True(t, strings.HasSuffix(results, "\nTotal : 1 vote(s)"))
}

func TestFlushCommand(t *testing.T) {
	f := newCommandFixture(t)
	ctx := context.Background()

	assert.Equal(t, "Aucun message recent a effacer.", f.run("/flush").Text)

	for _, content := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, f.conversations.StoreMessage(ctx, "group-1", model.HistoryEntry{Role: model.RoleUser, Content: content}))
	}
	assert.Equal(t, "Memoire recente effacee (3 messages supprimes). On repart a zero !", f.run("/flush").Text)

	left, err := f.conversations.Recent(ctx, "group-1", 10)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	reply := f.commands.Handle(ctx, "/flush", "Alice", "")
	assert.Equal(t, "Impossible d'effacer la memoire : groupe non identifie.", reply.Text)
}
