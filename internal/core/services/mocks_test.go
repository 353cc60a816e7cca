package services

import (
	"context"
	"fmt"
	"reflect"

	"vk-tg-transfer/internal/domain"
	"vk-tg-transfer/internal/ports"
)

// fakeNameResolver - это мок-реализация ports.NameResolver
type fakeNameResolver struct{}

func (fakeNameResolver) FullNames(_ context.Context, ids []int64) ([]string, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = fmt.Sprintf("Vk %d", id)
	}
	return names, nil
}

func (fakeNameResolver) FullName(_ context.Context, id int64) (string, error) {
	return fmt.Sprintf("Vk %d", id), nil
}

func (fakeNameResolver) TryGetTgName(id int64) (string, bool) {
	return fmt.Sprintf("Tg %d", id), true
}

func (fakeNameResolver) EgoID(context.Context) (int64, error) {
	return 1, nil
}

// fakeMediaConverter - это мок-реализация ports.MediaConverter.
// Результат конвертации задаётся заранее для каждого вложения; запрос
// незарегистрированного вложения - это ошибка теста.
type fakeMediaConverter struct {
	pairs []fakeMediaPair
}

type fakeMediaPair struct {
	attachment domain.Attachment
	media      domain.Media
}

func (f *fakeMediaConverter) add(attachment domain.Attachment, media domain.Media) {
	f.pairs = append(f.pairs, fakeMediaPair{attachment: attachment, media: media})
}

func (f *fakeMediaConverter) TryConvert(_ context.Context, attachments []domain.Attachment) ([]domain.Media, error) {
	result := make([]domain.Media, len(attachments))
	for i, attch := range attachments {
		found := false
		for _, pair := range f.pairs {
			if reflect.DeepEqual(pair.attachment, attch) {
				result[i] = pair.media
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unexpected attachment %#v", attch)
		}
	}
	return result, nil
}

// fakeVideoExtractor - это мок-реализация ports.VideoExtractor
type fakeVideoExtractor struct {
	tryDownloadFunc func(ctx context.Context, playerURL, outputTemplate string) (string, bool)
}

func (f *fakeVideoExtractor) TryDownload(ctx context.Context, playerURL, outputTemplate string) (string, bool) {
	if f.tryDownloadFunc != nil {
		return f.tryDownloadFunc(ctx, playerURL, outputTemplate)
	}
	return "", false
}

// fakeVkAPI - это мок-реализация ports.VkAPI
type fakeVkAPI struct {
	usersGetFunc       func(ctx context.Context, ids []int64) ([]ports.VkUser, error)
	groupsGetByIDFunc  func(ctx context.Context, ids []int64) ([]ports.VkGroup, error)
	egoFunc            func(ctx context.Context) (ports.VkUser, error)
	videoPlayerURLFunc func(ctx context.Context, video domain.VkVideo) (string, error)
}

func (f *fakeVkAPI) UsersGet(ctx context.Context, ids []int64) ([]ports.VkUser, error) {
	if f.usersGetFunc != nil {
		return f.usersGetFunc(ctx, ids)
	}
	users := make([]ports.VkUser, len(ids))
	for i, id := range ids {
		users[i] = ports.VkUser{ID: id, FirstName: "User", LastName: fmt.Sprint(id)}
	}
	return users, nil
}

func (f *fakeVkAPI) GroupsGetByID(ctx context.Context, ids []int64) ([]ports.VkGroup, error) {
	if f.groupsGetByIDFunc != nil {
		return f.groupsGetByIDFunc(ctx, ids)
	}
	groups := make([]ports.VkGroup, len(ids))
	for i, id := range ids {
		groups[i] = ports.VkGroup{ID: id, Name: fmt.Sprintf("Group %d", id)}
	}
	return groups, nil
}

func (f *fakeVkAPI) Ego(ctx context.Context) (ports.VkUser, error) {
	if f.egoFunc != nil {
		return f.egoFunc(ctx)
	}
	return ports.VkUser{ID: 1, FirstName: "Ego", LastName: "User"}, nil
}

func (f *fakeVkAPI) VideoPlayerURL(ctx context.Context, video domain.VkVideo) (string, error) {
	if f.videoPlayerURLFunc != nil {
		return f.videoPlayerURLFunc(ctx, video)
	}
	return "", nil
}
