package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContactsAPI struct {
	result  tg.ContactsContactsClass
	err     error
	self    []tg.UserClass
	selfErr error
}

func (f *fakeContactsAPI) ContactsGetContacts(context.Context, int64) (tg.ContactsContactsClass, error) {
	return f.result, f.err
}

func (f *fakeContactsAPI) UsersGetUsers(context.Context, []tg.InputUserClass) ([]tg.UserClass, error) {
	return f.self, f.selfErr
}

func TestContactsLister(t *testing.T) {
	ctx := context.Background()

	t.Run("NamesAreTrimmedAndSorted", func(t *testing.T) {
		lister := &ContactsLister{api: &fakeContactsAPI{result: &tg.ContactsContacts{
			Users: []tg.UserClass{
				&tg.User{FirstName: "Zoe"},
				&tg.User{FirstName: "Alice", LastName: "Smith"},
				&tg.User{LastName: "Brown"},
				&tg.User{},
				&tg.UserEmpty{ID: 404},
			},
		}}}

		names, err := lister.ContactNames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alice Smith", "Brown", "Zoe"}, names)
	})

	t.Run("APIErrorIsWrapped", func(t *testing.T) {
		lister := &ContactsLister{api: &fakeContactsAPI{err: errors.New("AUTH_KEY_UNREGISTERED")}}
		_, err := lister.ContactNames(ctx)
		require.Error(t, err)
	})

	t.Run("UnexpectedAnswerIsError", func(t *testing.T) {
		lister := &ContactsLister{api: &fakeContactsAPI{result: &tg.ContactsContactsNotModified{}}}
		_, err := lister.ContactNames(ctx)
		require.Error(t, err)
	})

	t.Run("SelfName", func(t *testing.T) {
		lister := &ContactsLister{api: &fakeContactsAPI{self: []tg.UserClass{
			&tg.User{FirstName: "Tg", LastName: "Name"},
		}}}

		name, err := lister.SelfName(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Tg Name", name)
	})

	t.Run("SelfNameEmptyAnswerIsError", func(t *testing.T) {
		lister := &ContactsLister{api: &fakeContactsAPI{}}
		_, err := lister.SelfName(ctx)
		require.Error(t, err)

		lister = &ContactsLister{api: &fakeContactsAPI{self: []tg.UserClass{&tg.UserEmpty{ID: 1}}}}
		_, err = lister.SelfName(ctx)
		require.Error(t, err)
	})
}
