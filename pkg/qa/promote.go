package qa

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/openlabtools/datamon/pkg/identifier"
	"github.com/openlabtools/datamon/pkg/ledger"
	"github.com/openlabtools/datamon/pkg/observability"
)

// Promote moves every fully signed-off identifier from the staging tree into
// checked/, removes its checklist rows and appends it to the file record. It
// returns the promoted identifiers in order. Running it twice with no
// checklist changes moves nothing further.
func (e *Engine) Promote() ([]string, error) {
	checklist, err := e.store.ReadChecklist()
	if err != nil {
		return nil, err
	}

	byID := make(map[string][]ledger.ChecklistRow)
	var order []string
	for _, row := range checklist {
		if byID[row.Identifier] == nil {
			order = append(order, row.Identifier)
		}
		byID[row.Identifier] = append(byID[row.Identifier], row)
	}
	sort.Strings(order)

	fileRecord, err := e.store.ReadFileRecord()
	if err != nil {
		return nil, err
	}

	promoted := make(map[string]bool)
	var promotedIDs []string
	for _, idStr := range order {
		rows := byID[idStr]
		if !allReviewed(rows) {
			continue
		}

		id, err := identifier.Parse(idStr)
		if err != nil {
			e.log.WithField("identifier", idStr).Warn("Unparseable identifier on checklist, skipping")
			continue
		}

		moved, err := e.moveStaged(id)
		if err != nil {
			return promotedIDs, err
		}
		if moved == 0 {
			// Reported, not fatal: the identifier stays in review until its
			// staged files reappear.
			e.log.WithField("identifier", idStr).Error("no files to move for passed ID")
			continue
		}

		promoted[idStr] = true
		promotedIDs = append(promotedIDs, idStr)
		observability.Promotions.Inc()
		first := rows[0]
		fileRecord = append(fileRecord, ledger.Record{
			DateTime:   e.run.RowStamp(),
			User:       e.run.User,
			Identifier: first.Identifier,
			Subject:    first.Subject,
			DataType:   first.DataType,
			Encrypted:  first.Encrypted,
			Suffix:     first.Suffix,
		})

		e.log.WithField("identifier", id.DisplayString(e.dict)).Info("Promoted to checked")
	}

	remaining := make([]ledger.ChecklistRow, 0, len(checklist))
	for _, row := range checklist {
		if !promoted[row.Identifier] {
			remaining = append(remaining, row)
		}
	}

	if err := e.store.WriteChecklist(remaining); err != nil {
		return promotedIDs, err
	}
	if err := e.store.WriteFileRecord(fileRecord); err != nil {
		return promotedIDs, err
	}

	_, err = e.fs.PruneEmptyDirs(e.run.Paths.PendingQA())
	return promotedIDs, err
}

func allReviewed(rows []ledger.ChecklistRow) bool {
	for _, row := range rows {
		if !row.QA || !row.LocalMove {
			return false
		}
	}
	return true
}

// moveStaged moves one identifier's staged files into the checked tree,
// reordering the layout from raw to checked convention.
func (e *Engine) moveStaged(id identifier.Identifier) (int, error) {
	stageDir, err := e.stagingDir(id)
	if err != nil {
		return 0, err
	}
	checkedDir, err := id.Directory(e.run.Paths.Root, identifier.ModeChecked, e.dict)
	if err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(stageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	moved := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parts, err := identifier.ParseFilename(entry.Name())
		if err != nil || parts.ID.Key() != id.Key() {
			continue
		}

		if err := e.fs.MoveTree(filepath.Join(stageDir, entry.Name()), filepath.Join(checkedDir, entry.Name())); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
