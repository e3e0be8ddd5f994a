// Package services holds cross-cutting helpers shared by pipeline
// collaborators: the sentinel error taxonomy used for retry classification
// and context annotations for structured logging.
package services
