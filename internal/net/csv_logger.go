package net

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

var csvHeader = []string{"epoch", "loss", "train_accuracy", "test_accuracy", "time_seconds"}

// CSVLogger logs training progress to a CSV file, one row per epoch.
// Write errors are kept and reported by Err instead of interrupting training.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file   *os.File
	writer *csv.Writer
	start  time.Time
	err    error
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

// NewCSVWriterLogger creates a CSVLogger writing to w. The caller owns w.
func NewCSVWriterLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{writer: csv.NewWriter(w)}
}

func (c *CSVLogger) OnTrainBegin(*Net) {
	c.start = time.Now()
	c.err = nil
	if c.Filename == "" {
		if c.writer != nil {
			c.write(csvHeader)
		}
		return
	}

	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}
	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		c.err = fmt.Errorf("csv logger: open %s: %w", c.Filename, err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)

	// Write header if not appending or if file is empty
	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		c.write(csvHeader)
	}
}

func (c *CSVLogger) OnEpochEnd(stats EpochStats, _ *Net) {
	if c.writer == nil {
		return
	}
	record := []string{
		strconv.Itoa(stats.Epoch + 1),
		strconv.FormatFloat(stats.Loss, 'f', 6, 64),
		"",
		"",
		strconv.FormatFloat(time.Since(c.start).Seconds(), 'f', 2, 64),
	}
	if stats.Classification {
		record[2] = strconv.FormatFloat(stats.TrainAccuracy, 'f', 2, 64)
		if stats.HasTest {
			record[3] = strconv.FormatFloat(stats.TestAccuracy, 'f', 2, 64)
		}
	}
	c.write(record)
}

func (c *CSVLogger) OnTrainEnd(*Net) {
	if c.file == nil {
		return
	}
	c.writer.Flush()
	if err := c.file.Close(); err != nil && c.err == nil {
		c.err = fmt.Errorf("csv logger: close %s: %w", c.Filename, err)
	}
	c.file = nil
	c.writer = nil
}

func (c *CSVLogger) write(record []string) {
	if err := c.writer.Write(record); err != nil && c.err == nil {
		c.err = fmt.Errorf("csv logger: %w", err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil && c.err == nil {
		c.err = fmt.Errorf("csv logger: %w", err)
	}
}

// Err returns the first error met while opening or writing the file.
func (c *CSVLogger) Err() error {
	return c.err
}
