package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jpl-au/wikid/internal/log"
	"github.com/jpl-au/wikid/internal/provider"
)

// Attach stores r as the next version of att. The parent page must exist.
func (s *Service) Attach(ctx context.Context, att *provider.Attachment, r io.Reader) error {
	exists, err := s.Exists(ctx, att.Page)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("attach to %s: page %w", att.Page, provider.ErrNotFound)
	}
	att.Author = s.author(att.Author)

	err = s.atts.PutAttachmentData(ctx, att, r)
	log.Event("wiki:attach", "write").
		Author(att.Author).
		Page(att.Name()).
		Version(att.Version).
		Detail("bytes", att.Size).
		Write(err)
	if err != nil {
		return err
	}
	if att.Version == 1 {
		return s.attachmentLinksChanged(ctx, att.Name())
	}
	return nil
}

// Attachment returns the metadata and content of one attachment version.
func (s *Service) Attachment(ctx context.Context, page, file string, version int) (*provider.Attachment, io.ReadCloser, error) {
	info, err := s.atts.AttachmentInfo(ctx, page, file, version)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.atts.AttachmentData(ctx, info)
	if err != nil {
		return nil, nil, err
	}
	return info, rc, nil
}

// Attachments returns the latest version of every attachment of page.
func (s *Service) Attachments(ctx context.Context, page string) ([]provider.Attachment, error) {
	return s.atts.ListAttachments(ctx, page)
}

// AttachmentHistory returns every version of page/file, newest first.
func (s *Service) AttachmentHistory(ctx context.Context, page, file string) ([]provider.Attachment, error) {
	return s.atts.VersionHistory(ctx, &provider.Attachment{Page: page, FileName: file})
}

// DeleteAttachment removes one version of page/file, or all of them.
func (s *Service) DeleteAttachment(ctx context.Context, page, file string, version int, all bool) error {
	att := &provider.Attachment{Page: page, FileName: file, Version: version}
	var err error
	if all {
		err = s.atts.DeleteAttachment(ctx, att)
	} else {
		err = s.atts.DeleteVersion(ctx, att)
	}
	log.Event("wiki:attach", "delete").Page(att.Name()).Version(version).Detail("all", all).Write(err)
	if err != nil {
		return err
	}

	if _, err := s.atts.AttachmentInfo(ctx, page, file, provider.Latest); errors.Is(err, provider.ErrNotFound) {
		return s.attachmentLinksChanged(ctx, att.Name())
	}
	return nil
}

// deleteAttachments removes every attachment of page.
func (s *Service) deleteAttachments(ctx context.Context, page string) error {
	atts, err := s.atts.ListAttachments(ctx, page)
	if errors.Is(err, provider.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for i := range atts {
		if err := s.atts.DeleteAttachment(ctx, &atts[i]); err != nil && !errors.Is(err, provider.ErrNotFound) {
			return fmt.Errorf("delete attachment %s: %w", atts[i].Name(), err)
		}
	}
	return nil
}

// attachmentLinksChanged re-indexes the pages linking to an attachment that
// has just appeared or disappeared, so it moves in or out of the uncreated
// set.
func (s *Service) attachmentLinksChanged(ctx context.Context, name string) error {
	referrers, err := s.refs.Referrers(ctx, name)
	if err != nil {
		return s.indexed("attach", name, err)
	}
	var refErr error
	for _, r := range referrers {
		text, err := s.Text(ctx, r, provider.Latest)
		if err != nil {
			refErr = errors.Join(refErr, err)
			continue
		}
		refErr = errors.Join(refErr, s.refs.PageSaved(ctx, r, text))
	}
	return s.indexed("attach", name, refErr)
}
