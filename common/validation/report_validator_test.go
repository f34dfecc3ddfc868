package validation

import (
	"strings"
	"testing"
)

func testLimits() Limits {
	return Limits{MaxAttachments: 10, MaxAttachmentSize: 20 << 20}
}

func validSubmit() *SubmitRequest {
	return &SubmitRequest{
		UploadID:    "a1b2c3d4e5f60718a1b2c3d4e5f60718",
		Type:        "harassment",
		Details:     "A detailed account of what happened.",
		IsAnonymous: false,
		Contact:     &Contact{Name: "Pat Doe", Email: "pat@example.com"},
		Attachments: []AttachmentDeclaration{{
			Filename:    "evidence.pdf",
			ContentType: "application/pdf",
			Size:        1024,
			StoragePath: "uploads/a1b2c3d4e5f60718a1b2c3d4e5f60718/evidence.pdf",
		}},
	}
}

func TestValidateSubmit_Accepts(t *testing.T) {
	v := NewReportValidator(testLimits())

	sub, reasons := v.ValidateSubmit(validSubmit())
	if len(reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", reasons)
	}
	if sub.Contact == nil {
		t.Error("contact should be retained for non-anonymous submissions")
	}
}

func TestValidateSubmit_TypeBounds(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	req.Type = "x"
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("one-character type should be rejected")
	}

	req = validSubmit()
	req.Type = strings.Repeat("a", 101)
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("101-character type should be rejected")
	}
}

func TestValidateSubmit_DetailsBounds(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	req.Details = "too short"
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("9-character details should be rejected")
	}

	req = validSubmit()
	req.Details = strings.Repeat("a", 10001)
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("10001-character details should be rejected")
	}
}

func TestValidateSubmit_AnonymousDropsContact(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	req.IsAnonymous = true
	req.Contact = &Contact{Name: "Should", Email: "vanish@example.com"}

	sub, reasons := v.ValidateSubmit(req)
	if len(reasons) != 0 {
		t.Fatalf("expected acceptance, got %v", reasons)
	}
	if sub.Contact != nil {
		t.Error("contact must be dropped for anonymous submissions")
	}
}

func TestValidateSubmit_ContactRequiredWhenNotAnonymous(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	req.Contact = nil
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("missing contact should be rejected for non-anonymous submissions")
	}
}

func TestValidateSubmit_ContactFields(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	req.Contact.Email = "not-an-email"
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("invalid email should be rejected")
	}

	req = validSubmit()
	req.Contact.Name = ""
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("empty contact name should be rejected")
	}
}

func TestValidateSubmit_TooManyAttachments(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	base := req.Attachments[0]
	req.Attachments = nil
	for i := 0; i < 11; i++ {
		req.Attachments = append(req.Attachments, base)
	}
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("11 attachments should be rejected")
	}
}

func TestValidateSubmit_StoragePathOutsideBatch(t *testing.T) {
	v := NewReportValidator(testLimits())

	req := validSubmit()
	req.Attachments[0].StoragePath = "uploads/other-batch/evidence.pdf"
	if _, reasons := v.ValidateSubmit(req); len(reasons) == 0 {
		t.Error("storage path outside the declared upload batch should be rejected")
	}
}

func TestValidateFiles(t *testing.T) {
	v := NewReportValidator(testLimits())

	if reasons := v.ValidateFiles(nil); len(reasons) == 0 {
		t.Error("empty file set should be rejected")
	}

	files := []FileDeclaration{{Filename: "evidence.pdf", ContentType: "application/pdf", Size: 1024}}
	if reasons := v.ValidateFiles(files); len(reasons) != 0 {
		t.Errorf("valid declaration rejected: %v", reasons)
	}

	files[0].Size = (20 << 20) + 1
	if reasons := v.ValidateFiles(files); len(reasons) == 0 {
		t.Error("oversized declaration should be rejected")
	}

	files[0].Size = 1024
	files[0].Filename = ""
	if reasons := v.ValidateFiles(files); len(reasons) == 0 {
		t.Error("empty filename should be rejected")
	}

	var many []FileDeclaration
	for i := 0; i < 11; i++ {
		many = append(many, FileDeclaration{Filename: "f.pdf", ContentType: "application/pdf", Size: 1})
	}
	if reasons := v.ValidateFiles(many); len(reasons) == 0 {
		t.Error("11 files should be rejected")
	}
}
