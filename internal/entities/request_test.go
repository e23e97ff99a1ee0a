package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestStatusValid(t *testing.T) {
	for _, status := range []RequestStatus{RequestStatusPending, RequestStatusFulfilled, RequestStatusRejected, RequestStatusContact} {
		assert.True(t, status.Valid(), string(status))
	}
	assert.False(t, RequestStatus("").Valid())
	assert.False(t, RequestStatus("DONE").Valid())
}

func TestRequestStatusTerminal(t *testing.T) {
	assert.False(t, RequestStatusPending.Terminal())
	assert.False(t, RequestStatusContact.Terminal())
	assert.True(t, RequestStatusFulfilled.Terminal())
	assert.True(t, RequestStatusRejected.Terminal())
}

func TestRequestStatusCanTransitionTo(t *testing.T) {
	tests := []struct {
		name    string
		from    RequestStatus
		to      RequestStatus
		allowed bool
	}{
		{"pending to fulfilled", RequestStatusPending, RequestStatusFulfilled, true},
		{"pending to rejected", RequestStatusPending, RequestStatusRejected, true},
		{"pending to contact", RequestStatusPending, RequestStatusContact, true},
		{"contact to fulfilled", RequestStatusContact, RequestStatusFulfilled, true},
		{"contact to rejected", RequestStatusContact, RequestStatusRejected, false},
		{"fulfilled to rejected", RequestStatusFulfilled, RequestStatusRejected, false},
		{"fulfilled to pending", RequestStatusFulfilled, RequestStatusPending, false},
		{"rejected to fulfilled", RequestStatusRejected, RequestStatusFulfilled, false},
		{"pending to pending", RequestStatusPending, RequestStatusPending, false},
		{"pending to unknown", RequestStatusPending, RequestStatus("DONE"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.from.CanTransitionTo(tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestBookRequestDescribe(t *testing.T) {
	request := &BookRequest{Title: "Kintu", Author: "Makumbi"}
	assert.Equal(t, "Kintu by Makumbi", request.Describe())

	request.Author = ""
	assert.Equal(t, "Kintu", request.Describe())

	request.Book = &Book{Title: "Kintu", Author: "Jennifer Nansubuga Makumbi"}
	assert.Equal(t, "Kintu by Jennifer Nansubuga Makumbi", request.Describe())
}

func TestProfileWhatsAppLink(t *testing.T) {
	profile := &Profile{WhatsAppName: "Asha", WhatsAppNumber: "+255700000001"}

	link := profile.WhatsAppLink("")
	assert.Equal(t, "https://wa.me/255700000001", link)

	link = profile.WhatsAppLink("Hello Asha, about your request")
	require.Contains(t, link, "https://wa.me/255700000001?text=")
	assert.Contains(t, link, "Hello+Asha")
}

func TestBookRequestContactLink(t *testing.T) {
	request := &BookRequest{
		Title:   "Kintu",
		Profile: Profile{WhatsAppName: "Asha", WhatsAppNumber: "+255700000001"},
	}

	link := request.ContactLink()
	assert.Contains(t, link, "wa.me/255700000001")
	assert.Contains(t, link, "Kintu")
}

func TestBookHasCover(t *testing.T) {
	book := &Book{}
	assert.False(t, book.HasCover())
	book.CoverKey = "books/covers/x.jpg"
	assert.True(t, book.HasCover())
}
