package setup

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

// DemoSource generates a small Artist/Album dataset in the Chinook layout.
// Artist 1 is always AC/DC so the usual sample questions have an answer.
type DemoSource struct {
	Seed            int64
	Artists         int
	AlbumsPerArtist int
}

func (s DemoSource) Name() string { return fmt.Sprintf("demo(seed=%d)", s.Seed) }

func (s DemoSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.Script())), nil
}

func (s DemoSource) Script() string {
	artists := s.Artists
	if artists <= 0 {
		artists = 25
	}
	albums := s.AlbumsPerArtist
	if albums <= 0 {
		albums = 2
	}
	faker := gofakeit.New(s.Seed)

	var b strings.Builder
	b.WriteString(`CREATE TABLE "Artist"
(
    "ArtistId" INTEGER NOT NULL,
    "Name" NVARCHAR(120),
    CONSTRAINT "PK_Artist" PRIMARY KEY ("ArtistId")
);
CREATE TABLE "Album"
(
    "AlbumId" INTEGER NOT NULL,
    "Title" NVARCHAR(160) NOT NULL,
    "ArtistId" INTEGER NOT NULL,
    CONSTRAINT "PK_Album" PRIMARY KEY ("AlbumId"),
    FOREIGN KEY ("ArtistId") REFERENCES "Artist" ("ArtistId")
);
`)

	albumID := 0
	for artistID := 1; artistID <= artists; artistID++ {
		name := "AC/DC"
		if artistID > 1 {
			name = faker.Adjective() + " " + faker.Noun()
		}
		fmt.Fprintf(&b, "INSERT INTO \"Artist\" (\"ArtistId\", \"Name\") VALUES (%d, %s);\n", artistID, quote(name))
		for i := 0; i < albums; i++ {
			albumID++
			title := faker.HipsterWord() + " " + faker.Color()
			if albumID == 1 {
				title = "For Those About To Rock We Salute You"
			}
			fmt.Fprintf(&b, "INSERT INTO \"Album\" (\"AlbumId\", \"Title\", \"ArtistId\") VALUES (%d, %s, %d);\n", albumID, quote(title), artistID)
		}
	}
	return b.String()
}

func quote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
