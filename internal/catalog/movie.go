package catalog

import "context"

// Genres offered by the UI.
var Genres = []string{"Action", "Comedy", "Drama", "Horror"}

// AllGenres is the filter value that matches every movie.
const AllGenres = "all"

// Movie is one catalog entry. VideoURL is a /uploads/ reference, or nil
// (encoded as null) when no file was uploaded.
type Movie struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Description string  `json:"description"`
	VideoURL    *string `json:"videoUrl"`
}

// HasVideo reports whether the movie references a stored file.
func (m Movie) HasVideo() bool {
	return m.VideoURL != nil && *m.VideoURL != ""
}

// Store persists the catalog. Records are never updated in place.
type Store interface {
	List(ctx context.Context) ([]Movie, error)
	Create(ctx context.Context, m Movie) (Movie, error)
	// Delete removes the movie with the given id and returns it. The bool is
	// false when no such movie exists.
	Delete(ctx context.Context, id string) (Movie, bool, error)
}

// FilterByGenre returns the movies whose genre equals genre, in catalog order.
// An empty genre or "all" returns every movie.
func FilterByGenre(movies []Movie, genre string) []Movie {
	if genre == "" || genre == AllGenres {
		return movies
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if m.Genre == genre {
			out = append(out, m)
		}
	}
	return out
}

// Find returns the movie with the given id.
func Find(movies []Movie, id string) (Movie, bool) {
	for _, m := range movies {
		if m.ID == id {
			return m, true
		}
	}
	return Movie{}, false
}

// SeedMovies is the demo catalog written when seeding is enabled.
func SeedMovies() []Movie {
	return []Movie{
		{Title: "Fast & Furious", Genre: "Action", Description: "High-octane action with cars and adrenaline."},
		{Title: "The Hangover", Genre: "Comedy", Description: "A hilarious comedy about a wild night in Vegas."},
		{Title: "The Godfather", Genre: "Drama", Description: "A classic drama about family and power."},
		{Title: "Halloween", Genre: "Horror", Description: "A terrifying horror movie that will keep you on edge."},
		{Title: "Die Hard", Genre: "Action", Description: "An explosive action thriller in a skyscraper."},
		{Title: "Superbad", Genre: "Comedy", Description: "A coming-of-age comedy about friendship."},
	}
}
