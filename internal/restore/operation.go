package restore

// Operation names one undo procedure.
type Operation int

const (
	OpNone Operation = iota
	OpRestorePNGFromJPEG
	OpRestoreOriginalFromWebP
	OpRestoreChain
	OpRestoreUncompressed
	OpRestoreServingOriginal
)

func (o Operation) String() string {
	switch o {
	case OpRestorePNGFromJPEG:
		return "restore_png_from_jpeg"
	case OpRestoreOriginalFromWebP:
		return "restore_original_from_webp"
	case OpRestoreChain:
		return "restore_conversion_chain"
	case OpRestoreUncompressed:
		return "restore_uncompressed"
	case OpRestoreServingOriginal:
		return "restore_serving_original"
	default:
		return "none"
	}
}
