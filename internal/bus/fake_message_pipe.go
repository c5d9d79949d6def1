// Copyright (c) F5, Inc.
//
// This source code is licensed under the Apache License, Version 2.0 license found in the
// LICENSE file in the root directory of this source tree.

package bus

import (
	"context"
	"sync"
)

// FakeMessagePipe records messages instead of delivering them. RunWithoutInit hands the recorded
// messages to every plugin synchronously, which keeps plugin tests deterministic.
type FakeMessagePipe struct {
	plugins           []Plugin
	messages          []*Message
	processedMessages []*Message
	messagesLock      sync.Mutex
}

var _ MessagePipeInterface = &FakeMessagePipe{}

func NewFakeMessagePipe() *FakeMessagePipe {
	return &FakeMessagePipe{
		messagesLock: sync.Mutex{},
	}
}

func (p *FakeMessagePipe) Register(_ int, plugins []Plugin) error {
	p.plugins = append(p.plugins, plugins...)
	return nil
}

func (p *FakeMessagePipe) DeRegister(ctx context.Context, pluginNames []string) error {
	for _, name := range pluginNames {
		index := getIndex(name, p.plugins)
		if index == -1 {
			continue
		}

		plugin := p.plugins[index]
		p.plugins = append(p.plugins[:index], p.plugins[index+1:]...)

		if err := plugin.Close(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (p *FakeMessagePipe) Process(_ context.Context, msgs ...*Message) {
	p.messagesLock.Lock()
	defer p.messagesLock.Unlock()

	p.messages = append(p.messages, msgs...)
}

func (p *FakeMessagePipe) GetMessages() []*Message {
	p.messagesLock.Lock()
	defer p.messagesLock.Unlock()

	return append([]*Message(nil), p.messages...)
}

// GetMessagesByTopic returns the recorded messages published on topic.
func (p *FakeMessagePipe) GetMessagesByTopic(topic string) []*Message {
	var messages []*Message

	for _, message := range p.GetMessages() {
		if message.Topic == topic {
			messages = append(messages, message)
		}
	}

	return messages
}

func (p *FakeMessagePipe) GetProcessedMessages() []*Message {
	p.messagesLock.Lock()
	defer p.messagesLock.Unlock()

	return append([]*Message(nil), p.processedMessages...)
}

func (p *FakeMessagePipe) ClearMessages() {
	p.messagesLock.Lock()
	defer p.messagesLock.Unlock()

	p.processedMessages = []*Message{}
	p.messages = []*Message{}
}

func (p *FakeMessagePipe) Run(ctx context.Context) {
	for _, plugin := range p.plugins {
		err := plugin.Init(ctx, p)
		if err != nil {
			return
		}
	}

	p.RunWithoutInit(ctx)
}

func (p *FakeMessagePipe) RunWithoutInit(ctx context.Context) {
	for {
		p.messagesLock.Lock()
		if len(p.messages) == 0 {
			p.messagesLock.Unlock()
			return
		}

		message := p.messages[0]
		p.messages = p.messages[1:]
		p.processedMessages = append(p.processedMessages, message)
		p.messagesLock.Unlock()

		for _, plugin := range p.plugins {
			for _, subscription := range plugin.Subscriptions() {
				if subscription == message.Topic {
					plugin.Process(ctx, message)
				}
			}
		}
	}
}

func (p *FakeMessagePipe) GetPlugins() []Plugin {
	return p.plugins
}

func (p *FakeMessagePipe) IsPluginRegistered(pluginName string) bool {
	return getIndex(pluginName, p.plugins) != -1
}
