package restore

import (
	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/media"
)

// Detect infers which undo procedure applies from the attachment's current
// MIME type and the set of valid backups. Conversion undos take precedence
// over compression undos: a conversion manifest is authoritative about the
// true original format, while a compression-only manifest only ever restores
// within the same format.
func Detect(currentMime string, backups map[backup.Kind]*backup.Manifest, hint *backup.Kind) Operation {
	if hint != nil {
		if m := backups[*hint]; m != nil {
			return fromManifest(*hint, m, currentMime)
		}
	}
	if m := backups[backup.KindConversion]; m != nil {
		if op := conversionOp(m, currentMime); op != OpNone {
			return op
		}
	}
	if backups[backup.KindUser] != nil {
		return OpRestoreUncompressed
	}
	if backups[backup.KindServing] != nil {
		return OpRestoreServingOriginal
	}
	if backups[backup.KindLegacy] != nil {
		return OpRestoreUncompressed
	}
	return OpNone
}

func fromManifest(kind backup.Kind, m *backup.Manifest, currentMime string) Operation {
	switch kind {
	case backup.KindConversion:
		return conversionOp(m, currentMime)
	case backup.KindUser, backup.KindLegacy:
		return OpRestoreUncompressed
	case backup.KindServing:
		return OpRestoreServingOriginal
	default:
		return OpNone
	}
}

func conversionOp(m *backup.Manifest, currentMime string) Operation {
	if m.Chain != nil {
		return OpRestoreChain
	}
	switch {
	case currentMime == media.MimeJPEG && m.Main.OriginalMime == media.MimePNG:
		return OpRestorePNGFromJPEG
	case currentMime == media.MimeWebP && (m.Main.OriginalMime == media.MimePNG || m.Main.OriginalMime == media.MimeJPEG):
		return OpRestoreOriginalFromWebP
	// Flags cover attachments whose current MIME detection is unreliable.
	case m.Main.ConvertedToWebP:
		return OpRestoreOriginalFromWebP
	case m.Main.ConvertedFromPNG:
		return OpRestorePNGFromJPEG
	default:
		return OpNone
	}
}
