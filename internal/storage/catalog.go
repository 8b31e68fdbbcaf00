package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/freeredeemgames/freerg-bot/internal/models"
)

// defaultFreeGames is the hand-curated always-free catalog. It is a
// static seed list, never fetched from any upstream.
var defaultFreeGames = []models.FreeGame{
	{Store: "steam", Title: "Counter-Strike 2", URL: "https://store.steampowered.com/app/730/CounterStrike_2", Sort: 10},
	{Store: "steam", Title: "Dota 2", URL: "https://store.steampowered.com/app/570/Dota_2", Sort: 20},
	{Store: "steam", Title: "Team Fortress 2", URL: "https://store.steampowered.com/app/440/Team_Fortress_2", Sort: 30},
	{Store: "steam", Title: "Warframe", URL: "https://store.steampowered.com/app/230410/Warframe", Sort: 40},
	{Store: "steam", Title: "Apex Legends", URL: "https://store.steampowered.com/app/1172470/Apex_Legends", Sort: 50},
	{Store: "steam", Title: "Destiny 2", URL: "https://store.steampowered.com/app/1085660/Destiny_2", Sort: 60},
	{Store: "steam", Title: "PUBG: BATTLEGROUNDS", URL: "https://store.steampowered.com/app/578080/PUBG_BATTLEGROUNDS", Sort: 70},
	{Store: "epic", Title: "Fortnite", URL: "https://store.epicgames.com/en/p/fortnite", Sort: 80},
	{Store: "epic", Title: "Rocket League", URL: "https://store.epicgames.com/en/p/rocket-league", Sort: 90},
	{Store: "gog", Title: "GWENT: The Witcher Card Game", URL: "https://www.gog.com/game/gwent_the_witcher_card_game", Sort: 100},
}

// SeedFreeGames inserts the curated catalog, skipping titles already
// present (the URL is unique). Safe to call on every startup.
func (s *Store) SeedFreeGames(ctx context.Context) error {
	for _, g := range defaultFreeGames {
		game := g
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&game).Error
		if err != nil {
			return fmt.Errorf("failed to seed free game %s: %w", g.Title, err)
		}
	}
	return nil
}

// ListFreeGames returns the curated catalog in display order.
func (s *Store) ListFreeGames(ctx context.Context, limit int) ([]models.FreeGame, error) {
	var games []models.FreeGame
	err := s.db.WithContext(ctx).
		Order("sort ASC").
		Order("created_at DESC").
		Limit(limit).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list free games: %w", err)
	}
	return games, nil
}
