package app

import (
	"time"

	"yunmun/api/internal/archive"
	"yunmun/api/internal/export"
	"yunmun/api/internal/store"
)

// ManuscriptOf assembles the export view of a work from its chapters,
// using each chapter's most refined text.
func ManuscriptOf(work store.Work, authorName string, chapters []store.Chapter, generatedAt time.Time) export.Manuscript {
	m := export.Manuscript{
		WorkID:      work.ID,
		Title:       work.Title,
		Author:      authorName,
		Status:      string(work.Status),
		Chapters:    make([]export.Chapter, 0, len(chapters)),
		GeneratedAt: generatedAt,
	}
	for _, ch := range chapters {
		m.Chapters = append(m.Chapters, export.Chapter{
			Number: ch.Number,
			Title:  ch.TitleOrEmpty(),
			Status: string(ch.Status),
			Text:   ch.LatestText(),
		})
	}
	return m
}

func ArchiveManuscript(work store.Work, chapters []store.Chapter) archive.Manuscript {
	files := make([]archive.ChapterFile, 0, len(chapters))
	for _, ch := range chapters {
		files = append(files, archive.ChapterFile{
			Number: ch.Number,
			Title:  ch.TitleOrEmpty(),
			Status: string(ch.Status),
			Text:   ch.LatestText(),
		})
	}
	return archive.Manuscript{WorkID: work.ID, Title: work.Title, Chapters: files}
}
