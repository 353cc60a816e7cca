package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gotd/td/tg"
)

// contactsAPI представляет методы API для чтения списка контактов и
// собственного профиля.
type contactsAPI interface {
	ContactsGetContacts(ctx context.Context, hash int64) (tg.ContactsContactsClass, error)
	UsersGetUsers(ctx context.Context, id []tg.InputUserClass) ([]tg.UserClass, error)
}

// ContactsLister читает отображаемые имена контактов авторизованного
// пользователя Telegram.
type ContactsLister struct {
	api contactsAPI
}

// NewContactsLister создает новый экземпляр ContactsLister.
func NewContactsLister(api *tg.Client) *ContactsLister {
	return &ContactsLister{api: api}
}

// ContactNames возвращает отсортированные имена контактов в формате
// "имя фамилия", совпадающем с именами, которые строит разрешение имён VK.
func (c *ContactsLister) ContactNames(ctx context.Context) ([]string, error) {
	// Нулевой хеш заставляет сервер вернуть полный список.
	raw, err := c.api.ContactsGetContacts(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("запрос контактов: %w", err)
	}

	contacts, ok := raw.(*tg.ContactsContacts)
	if !ok {
		return nil, fmt.Errorf("неожиданный ответ contacts.getContacts: %T", raw)
	}

	var names []string
	for _, userClass := range contacts.Users {
		user, ok := userClass.(*tg.User)
		if !ok {
			continue
		}
		name := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// SelfName возвращает отображаемое имя авторизованного пользователя.
func (c *ContactsLister) SelfName(ctx context.Context) (string, error) {
	users, err := c.api.UsersGetUsers(ctx, []tg.InputUserClass{&tg.InputUserSelf{}})
	if err != nil {
		return "", fmt.Errorf("запрос собственного профиля: %w", err)
	}
	if len(users) == 0 {
		return "", fmt.Errorf("users.getUsers вернул пустой ответ")
	}
	user, ok := users[0].(*tg.User)
	if !ok {
		return "", fmt.Errorf("неожиданный ответ users.getUsers: %T", users[0])
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return "", fmt.Errorf("у аккаунта пустое отображаемое имя")
	}
	return name, nil
}
