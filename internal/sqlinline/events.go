package sqlinline

const QInsertOutputEvent = `--sql ba63e1f9-04d7-428c-9a5e-6f18c2d07b34
insert into output_events (id, output_id, user_id, event_type, metadata)
values ($1::uuid, $2::uuid, $3::uuid, $4::text, coalesce($5::jsonb, '{}'::jsonb));
`

const QSelectOutputEvents = `--sql 78f4b2a5-d16e-4093-bc87-25e9a0d34c61
select output_id, user_id, event_type
from output_events;
`

// Denominator for the per-model download rate: every output a model ever
// produced, not just outputs with events.
const QSelectModelOutputTotals = `--sql 1e96d5c0-3a72-4f48-8b1d-c47e082f5a96
select g.model_id, count(o.id)
from outputs o
join generations g on g.id = o.generation_id
group by g.model_id;
`

const QSelectEventOutputModels = `--sql 93a0c7e4-5f28-4d16-b9a3-70d5e1b86c42
select o.id, g.model_id
from outputs o
join generations g on g.id = o.generation_id;
`
