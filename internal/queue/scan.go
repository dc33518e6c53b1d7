package queue

import (
	"database/sql"
	"time"
)

const itemColumns = "id, source_url, source_path, title, status, download_only, scratch_dir, manifest_json, audio_stream_path, video_stream_path, muxed_path, silence_json, clips_json, output_path, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		sourceURL       sql.NullString
		sourcePath      sql.NullString
		title           string
		statusStr       string
		downloadOnly    int
		scratchDir      sql.NullString
		manifestJSON    sql.NullString
		audioStreamPath sql.NullString
		videoStreamPath sql.NullString
		muxedPath       sql.NullString
		silenceJSON     sql.NullString
		clipsJSON       sql.NullString
		outputPath      sql.NullString
		errorMessage    sql.NullString
		createdRaw      string
		updatedRaw      string
		progressStage   sql.NullString
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&sourcePath,
		&title,
		&statusStr,
		&downloadOnly,
		&scratchDir,
		&manifestJSON,
		&audioStreamPath,
		&videoStreamPath,
		&muxedPath,
		&silenceJSON,
		&clipsJSON,
		&outputPath,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:              id,
		SourceURL:       sourceURL.String,
		SourcePath:      sourcePath.String,
		Title:           title,
		Status:          Status(statusStr),
		DownloadOnly:    downloadOnly != 0,
		ScratchDir:      scratchDir.String,
		ManifestJSON:    manifestJSON.String,
		AudioStreamPath: audioStreamPath.String,
		VideoStreamPath: videoStreamPath.String,
		MuxedPath:       muxedPath.String,
		SilenceJSON:     silenceJSON.String,
		ClipsJSON:       clipsJSON.String,
		OutputPath:      outputPath.String,
		ErrorMessage:    errorMessage.String,
		CreatedAt:       parseTimestamp(createdRaw),
		UpdatedAt:       parseTimestamp(updatedRaw),
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
	}
	return item, nil
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	return time.Time{}
}
